package device

import (
	"fmt"
	"slices"
	"sync"
)

// Safe pins on an ESP32 DevKit V1. Flash and strapping pins are excluded.
var (
	outputPins    = []int{2, 4, 5, 12, 13, 14, 15, 16, 17, 18, 19, 21, 22, 23, 25, 26, 27, 32, 33}
	inputOnlyPins = []int{34, 35, 36, 39}
)

// Pins is the GPIO capability shared by immediate actuation tools and
// background scripts. Writers are not arbitrated: the last write wins.
type Pins interface {
	// SetPin drives an output pin and returns a human readable status.
	SetPin(pin int, high bool) string
	// GetPin reads a pin and returns "0" or "1", or an error string.
	GetPin(pin int) string
}

// IsValidOutputPin reports whether pin may be driven as an output.
func IsValidOutputPin(pin int) bool {
	return slices.Contains(outputPins, pin)
}

// IsValidInputPin reports whether pin may be read. Every output pin is
// also readable; 34, 35, 36 and 39 are input only.
func IsValidInputPin(pin int) bool {
	return IsValidOutputPin(pin) || slices.Contains(inputOnlyPins, pin)
}

// Board is an in-memory GPIO bank used on hosts without real pins.
type Board struct {
	mu     sync.Mutex
	levels map[int]bool
	writes int
}

func NewBoard() *Board {
	return &Board{levels: make(map[int]bool)}
}

func (b *Board) SetPin(pin int, high bool) string {
	if !IsValidOutputPin(pin) {
		return fmt.Sprintf("Error: Invalid Output Pin %d", pin)
	}
	b.mu.Lock()
	b.levels[pin] = high
	b.writes++
	b.mu.Unlock()
	return fmt.Sprintf("Pin %d set to %s", pin, levelName(high))
}

func (b *Board) GetPin(pin int) string {
	if !IsValidInputPin(pin) {
		return fmt.Sprintf("Error: Invalid Input Pin %d", pin)
	}
	b.mu.Lock()
	high := b.levels[pin]
	b.mu.Unlock()
	if high {
		return "1"
	}
	return "0"
}

// Level returns the last written level of pin.
func (b *Board) Level(pin int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[pin]
}

// Writes returns the number of successful writes since creation.
func (b *Board) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func levelName(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
