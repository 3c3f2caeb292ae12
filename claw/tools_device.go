package claw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oraraka-deko/microclaw/device"
	"github.com/oraraka-deko/microclaw/store"
)

// MemoryReader supplies the long-term memory document.
type MemoryReader interface {
	ReadFile(path string) string
}

// MemoryStore is the memory document store the memory tools write to.
type MemoryStore interface {
	MemoryReader
	AppendFile(path, content string) error
}

// DeviceTools bundles the collaborators of the built-in tool catalog.
// Tools whose collaborator is nil are not registered.
type DeviceTools struct {
	Pins    device.Pins
	Claw    device.Claw
	WiFi    device.WiFiScanner
	BLE     device.BLE
	Memory  MemoryStore
	Scripts *ScriptRunner

	// Stats overrides the system stats source; defaults to device.StatsJSON.
	Stats func() string
}

type noParams struct{}

type bleConnectParams struct {
	Address string `json:"address" jsonschema_description:"MAC address of the peripheral to connect to"`
}

type clawParams struct {
	Action string `json:"action" jsonschema_description:"OPEN, CLOSE or WAVE"`
}

type memoryWriteParams struct {
	Content string `json:"content" jsonschema_description:"Fact to remember, appended as one line"`
}

type gpioParams struct {
	Pin   int    `json:"pin" jsonschema_description:"GPIO pin number"`
	Mode  string `json:"mode,omitempty" jsonschema:"enum=output,enum=input" jsonschema_description:"output (default) or input"`
	State Level  `json:"state,omitempty"`
}

type scriptRequest struct {
	Script []ScriptStep `json:"script" validate:"required,min=1"`
}

var scriptValidate = validator.New()

// wifiEntry is the per-network shape of the wifi_scan result.
type wifiEntry struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
	Enc  string `json:"enc"`
}

const maxWiFiResults = 5

// RegisterDeviceTools registers the hardware, memory and scripting tools.
func RegisterDeviceTools(r *ToolRegistry, d DeviceTools) error {
	stats := d.Stats
	if stats == nil {
		stats = device.StatsJSON
	}

	if err := r.AddFunc("get_system_stats",
		"Get current system statistics like free heap, uptime, cpu count and runtime version.",
		func(ctx context.Context, _ noParams) (string, error) {
			return stats(), nil
		}); err != nil {
		return err
	}

	if d.Claw != nil {
		if err := r.AddFunc("claw_control", "Control the claw mechanism.",
			func(ctx context.Context, p clawParams) (string, error) {
				return clawControl(ctx, d.Claw, p.Action)
			}); err != nil {
			return err
		}
	}

	if d.WiFi != nil {
		if err := r.AddFunc("wifi_scan", "Scan for nearby WiFi networks and return the strongest ones.",
			func(ctx context.Context, _ noParams) (string, error) {
				return wifiScan(ctx, d.WiFi)
			}); err != nil {
			return err
		}
	}

	if d.BLE != nil {
		if err := registerBLETools(r, d.BLE); err != nil {
			return err
		}
	}

	if d.Memory != nil {
		if err := registerMemoryTools(r, d.Memory); err != nil {
			return err
		}
	}

	if d.Pins != nil {
		if err := r.AddFunc("gpio_control", "Set an output pin HIGH/LOW or read an input pin immediately.",
			func(ctx context.Context, p gpioParams) (string, error) {
				return gpioControl(d.Pins, p)
			}); err != nil {
			return err
		}
	}

	if d.Scripts != nil {
		r.Register(Tool{
			Name:             "run_script",
			Description:      "Run a hardware script (gpio, delay, loop steps) in the background.",
			ParametersSchema: scriptSchema(),
			Usage:            scriptUsage,
		}, func(ctx context.Context, args map[string]any) (string, error) {
			steps, err := decodeScript(args)
			if err != nil {
				return "", err
			}
			return d.Scripts.Start(steps), nil
		})
	}
	return nil
}

func wifiScan(ctx context.Context, s device.WiFiScanner) (string, error) {
	nets, err := s.ScanWiFi(ctx)
	if err != nil {
		return "", err
	}
	if len(nets) == 0 {
		return "No networks found", nil
	}
	sort.SliceStable(nets, func(i, j int) bool { return nets[i].RSSI > nets[j].RSSI })
	if len(nets) > maxWiFiResults {
		nets = nets[:maxWiFiResults]
	}
	out := make([]wifiEntry, 0, len(nets))
	for _, n := range nets {
		enc := "Open"
		if n.Encrypted {
			enc = "Secured"
		}
		out = append(out, wifiEntry{SSID: n.SSID, RSSI: n.RSSI, Enc: enc})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func registerBLETools(r *ToolRegistry, ble device.BLE) error {
	if err := r.AddFunc("ble_scan", "Scan for nearby Bluetooth Low Energy devices.",
		func(ctx context.Context, _ noParams) (string, error) {
			devs, err := ble.ScanBLE(ctx)
			if err != nil {
				return "", err
			}
			if len(devs) == 0 {
				return "No BLE devices found", nil
			}
			b, err := json.Marshal(devs)
			return string(b), err
		}); err != nil {
		return err
	}

	if err := r.AddFunc("ble_connect", "Connect to a BLE peripheral by address.",
		func(ctx context.Context, p bleConnectParams) (string, error) {
			addr := strings.TrimSpace(p.Address)
			if addr == "" {
				return "", errors.New("address is required")
			}
			if err := ble.Connect(ctx, addr); err != nil {
				return "", err
			}
			return "Connected to " + addr, nil
		}); err != nil {
		return err
	}

	return r.AddFunc("ble_disconnect", "Disconnect the connected BLE peripheral.",
		func(ctx context.Context, _ noParams) (string, error) {
			if err := ble.Disconnect(ctx); err != nil {
				if errors.Is(err, device.ErrNotConnected) {
					return "No BLE device connected", nil
				}
				return "", err
			}
			return "Disconnected", nil
		})
}

func registerMemoryTools(r *ToolRegistry, mem MemoryStore) error {
	if err := r.AddFunc("memory_write", "Append a fact to long-term memory.",
		func(ctx context.Context, p memoryWriteParams) (string, error) {
			if p.Content == "" {
				return "No content provided", nil
			}
			if err := mem.AppendFile(store.MemoryPath, p.Content+"\n"); err != nil {
				return "", err
			}
			return "Memory updated", nil
		}); err != nil {
		return err
	}

	return r.AddFunc("memory_read", "Read the long-term memory document.",
		func(ctx context.Context, _ noParams) (string, error) {
			content := mem.ReadFile(store.MemoryPath)
			if content == "" {
				return "Memory is empty", nil
			}
			return content, nil
		})
}

func clawControl(ctx context.Context, c device.Claw, action string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case "OPEN":
		c.Open()
		return "Claw opened", nil
	case "CLOSE":
		c.Close()
		return "Claw closed", nil
	case "WAVE":
		if err := c.Wave(ctx); err != nil {
			return "", err
		}
		return "Claw waved", nil
	default:
		return "Unknown claw action", nil
	}
}

func gpioControl(pins device.Pins, p gpioParams) (string, error) {
	switch strings.ToLower(strings.TrimSpace(p.Mode)) {
	case "", "output":
		return pins.SetPin(p.Pin, bool(p.State)), nil
	case "input":
		v := pins.GetPin(p.Pin)
		if strings.HasPrefix(v, "Error") {
			return v, nil
		}
		return fmt.Sprintf("Pin %d reads %s", p.Pin, v), nil
	default:
		return "", fmt.Errorf("unknown mode %q, expected output or input", p.Mode)
	}
}

func decodeScript(args map[string]any) ([]ScriptStep, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var req scriptRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	if err := scriptValidate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return req.Script, nil
}
