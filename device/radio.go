package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Network is one access point seen by a WiFi scan.
type Network struct {
	SSID      string `json:"ssid"`
	RSSI      int    `json:"rssi"`
	Encrypted bool   `json:"-"`
}

// BLEDevice is one advertiser seen by a BLE scan.
type BLEDevice struct {
	Address string `json:"addr"`
	RSSI    int    `json:"rssi"`
	Service string `json:"service,omitempty"`
}

// WiFiScanner lists nearby access points.
type WiFiScanner interface {
	ScanWiFi(ctx context.Context) ([]Network, error)
}

// BLE scans for and holds at most one connection to a peripheral.
type BLE interface {
	ScanBLE(ctx context.Context) ([]BLEDevice, error)
	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context) error
}

var ErrNotConnected = errors.New("no BLE device connected")

// Radio is a simulated WiFi + BLE radio returning fixed scan results.
type Radio struct {
	Networks []Network
	Devices  []BLEDevice

	mu        sync.Mutex
	connected string
}

func (r *Radio) ScanWiFi(ctx context.Context) ([]Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Network, len(r.Networks))
	copy(out, r.Networks)
	return out, nil
}

func (r *Radio) ScanBLE(ctx context.Context) ([]BLEDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]BLEDevice, len(r.Devices))
	copy(out, r.Devices)
	return out, nil
}

func (r *Radio) Connect(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, d := range r.Devices {
		if d.Address == address {
			r.mu.Lock()
			r.connected = address
			r.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("device %s not found", address)
}

func (r *Radio) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected == "" {
		return ErrNotConnected
	}
	r.connected = ""
	return nil
}

// Connected returns the address of the connected peripheral, if any.
func (r *Radio) Connected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}
