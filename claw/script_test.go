package claw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/oraraka-deko/microclaw/device"
)

type pinWrite struct {
	Pin  int
	High bool
}

// recordingPins records every accepted write.
type recordingPins struct {
	mu     sync.Mutex
	writes []pinWrite
}

func (p *recordingPins) SetPin(pin int, high bool) string {
	if !device.IsValidOutputPin(pin) {
		return fmt.Sprintf("Error: Invalid Output Pin %d", pin)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, pinWrite{Pin: pin, High: high})
	return fmt.Sprintf("Pin %d set", pin)
}

func (p *recordingPins) GetPin(pin int) string { return "0" }

func (p *recordingPins) snapshot() []pinWrite {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pinWrite, len(p.writes))
	copy(out, p.writes)
	return out
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestRunner(pins device.Pins) *ScriptRunner {
	r := NewScriptRunner(pins)
	r.sleep = noSleep
	return r
}

func blink(count int) []ScriptStep {
	return []ScriptStep{{
		Cmd:   StepLoop,
		Count: count,
		Steps: []ScriptStep{
			{Cmd: StepGPIO, Pin: 2, State: true},
			{Cmd: StepDelay, Ms: 100},
			{Cmd: StepGPIO, Pin: 2, State: false},
		},
	}}
}

func TestScriptRunner_LoopCounts(t *testing.T) {
	for _, count := range []int{-1, 0, 1, 5} {
		t.Run(fmt.Sprintf("count=%d", count), func(t *testing.T) {
			pins := &recordingPins{}
			if err := newTestRunner(pins).Run(context.Background(), blink(count)); err != nil {
				t.Fatalf("Run: %v", err)
			}
			want := max(count, 0) * 2
			if got := len(pins.snapshot()); got != want {
				t.Errorf("got %d writes, want %d", got, want)
			}
		})
	}
}

func TestScriptRunner_NestedLoops(t *testing.T) {
	pins := &recordingPins{}
	steps := []ScriptStep{{
		Cmd:   StepLoop,
		Count: 3,
		Steps: blink(2),
	}}
	if err := newTestRunner(pins).Run(context.Background(), steps); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(pins.snapshot()); got != 12 {
		t.Errorf("got %d writes, want 12", got)
	}
}

func TestScriptRunner_NestingLimit(t *testing.T) {
	inner := []ScriptStep{{Cmd: StepGPIO, Pin: 4, State: true}}
	for i := 0; i < MaxLoopNesting+1; i++ {
		inner = []ScriptStep{{Cmd: StepLoop, Count: 1, Steps: inner}}
	}
	pins := &recordingPins{}
	steps := append(inner, ScriptStep{Cmd: StepGPIO, Pin: 5, State: true})
	if err := newTestRunner(pins).Run(context.Background(), steps); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]pinWrite{{Pin: 5, High: true}}, pins.snapshot()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptRunner_InvalidPinAndUnknownCmdContinue(t *testing.T) {
	pins := &recordingPins{}
	steps := []ScriptStep{
		{Cmd: StepGPIO, Pin: 2, State: true},
		{Cmd: StepGPIO, Pin: 99, State: true},
		{Cmd: "servo", Pin: 4},
		{Cmd: StepGPIO, Pin: 4, State: true},
	}
	if err := newTestRunner(pins).Run(context.Background(), steps); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []pinWrite{{Pin: 2, High: true}, {Pin: 4, High: true}}
	if diff := cmp.Diff(want, pins.snapshot()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptRunner_DelayHonoursContext(t *testing.T) {
	r := NewScriptRunner(&recordingPins{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Run(ctx, []ScriptStep{{Cmd: StepDelay, Ms: 10_000}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("delay ignored cancellation")
	}
}

func TestScriptRunner_StartCopiesSteps(t *testing.T) {
	pins := &recordingPins{}
	release := make(chan struct{})
	r := NewScriptRunner(pins)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		<-release
		return nil
	}

	steps := []ScriptStep{
		{Cmd: StepDelay, Ms: 1},
		{Cmd: StepLoop, Count: 1, Steps: []ScriptStep{{Cmd: StepGPIO, Pin: 2, State: true}}},
	}
	ack := r.Start(steps)
	if ack != "Script started in background (2 steps)" {
		t.Errorf("unexpected ack %q", ack)
	}

	steps[1].Steps[0].Pin = 4
	close(release)
	r.Wait()

	if diff := cmp.Diff([]pinWrite{{Pin: 2, High: true}}, pins.snapshot()); diff != "" {
		t.Errorf("script saw caller mutation (-want +got):\n%s", diff)
	}
	if r.Active() != 0 {
		t.Errorf("active = %d after Wait", r.Active())
	}
}

func TestScriptRunner_ConcurrentScripts(t *testing.T) {
	board := device.NewBoard()
	r := newTestRunner(board)
	r.Start(blink(3))
	r.Start([]ScriptStep{{Cmd: StepGPIO, Pin: 4, State: true}})
	r.Wait()

	if !board.Level(4) {
		t.Error("pin 4 should be HIGH")
	}
	if board.Level(2) {
		t.Error("pin 2 should end LOW")
	}
}

func TestLevel_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: `1`, want: true},
		{in: `0`, want: false},
		{in: `true`, want: true},
		{in: `false`, want: false},
		{in: `"HIGH"`, want: true},
		{in: `"off"`, want: false},
		{in: `null`, want: false},
		{in: `"sideways"`, wantErr: true},
		{in: `[1]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var l Level
			err := json.Unmarshal([]byte(tt.in), &l)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l != tt.want {
				t.Errorf("got %v, want %v", l, tt.want)
			}
		})
	}
}

func TestScriptStep_Decode(t *testing.T) {
	raw := `[{"cmd":"loop","count":2,"steps":[{"cmd":"gpio","pin":2,"state":1},{"cmd":"delay","ms":500}]}]`
	var steps []ScriptStep
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := []ScriptStep{{
		Cmd:   StepLoop,
		Count: 2,
		Steps: []ScriptStep{
			{Cmd: StepGPIO, Pin: 2, State: true},
			{Cmd: StepDelay, Ms: 500},
		},
	}}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}
