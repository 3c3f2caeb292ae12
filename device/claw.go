package device

import (
	"context"
	"sync"
	"time"
)

// Servo angles for the two claw end positions.
const (
	ClawOpenAngle   = 180
	ClawClosedAngle = 0

	defaultWaveStep = 300 * time.Millisecond
)

// Claw is the gripper actuator.
type Claw interface {
	Open()
	Close()
	// Wave opens, closes and opens again, pausing between moves.
	Wave(ctx context.Context) error
}

// Servo is a simulated claw servo that records its angle.
type Servo struct {
	Pin int

	// WaveStep is the pause between wave moves. Zero means 300ms.
	WaveStep time.Duration

	mu    sync.Mutex
	angle int
	moves int
}

// NewServo returns a servo on pin, starting open.
func NewServo(pin int) *Servo {
	return &Servo{Pin: pin, angle: ClawOpenAngle}
}

func (s *Servo) Open()  { s.SetAngle(ClawOpenAngle) }
func (s *Servo) Close() { s.SetAngle(ClawClosedAngle) }

func (s *Servo) SetAngle(angle int) {
	s.mu.Lock()
	s.angle = angle
	s.moves++
	s.mu.Unlock()
}

func (s *Servo) Wave(ctx context.Context) error {
	step := s.WaveStep
	if step <= 0 {
		step = defaultWaveStep
	}
	s.Open()
	for _, move := range []func(){s.Close, s.Open} {
		t := time.NewTimer(step)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		move()
	}
	return nil
}

// Angle returns the last commanded angle.
func (s *Servo) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Moves returns how many times the servo was commanded.
func (s *Servo) Moves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves
}
