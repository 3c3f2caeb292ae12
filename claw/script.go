package claw

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/oraraka-deko/microclaw/device"
)

// MaxLoopNesting bounds how deeply loop steps may nest inside one script.
const MaxLoopNesting = 32

// StepKind names a script instruction.
type StepKind string

const (
	StepGPIO  StepKind = "gpio"
	StepDelay StepKind = "delay"
	StepLoop  StepKind = "loop"
)

// ScriptStep is one instruction of a run_script program.
type ScriptStep struct {
	Cmd   StepKind     `json:"cmd"`
	Pin   int          `json:"pin,omitempty"`
	State Level        `json:"state,omitempty"`
	Ms    int          `json:"ms,omitempty"`
	Count int          `json:"count,omitempty"`
	Steps []ScriptStep `json:"steps,omitempty"`
}

// Level is a pin level. It decodes JSON booleans, numbers and the usual
// strings ("high", "on", "1", ...) so models can be sloppy about it.
type Level bool

func (l *Level) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*l = false
	case bool:
		*l = Level(t)
	case float64:
		*l = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "high", "on", "yes":
			*l = true
		case "", "0", "false", "low", "off", "no":
			*l = false
		default:
			return fmt.Errorf("invalid pin level %q", t)
		}
	default:
		return fmt.Errorf("invalid pin level %s", string(b))
	}
	return nil
}

// JSONSchema accepts both 1 and true.
func (Level) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "1/true for HIGH, 0/false for LOW",
		AnyOf: []*jsonschema.Schema{
			{Type: "integer", Enum: []any{0, 1}},
			{Type: "boolean"},
		},
	}
}

// ScriptRunner executes run_script programs against the pin bank.
type ScriptRunner struct {
	pins    device.Pins
	logger  *slog.Logger
	metrics *Metrics
	sleep   func(ctx context.Context, d time.Duration) error

	wg     sync.WaitGroup
	active atomic.Int64
}

// NewScriptRunner creates a runner driving pins.
func NewScriptRunner(pins device.Pins) *ScriptRunner {
	return &ScriptRunner{
		pins:   pins,
		logger: slog.New(slog.DiscardHandler),
		sleep:  sleepCtx,
	}
}

// WithLogger sets the logger used for step tracing.
func (r *ScriptRunner) WithLogger(l *slog.Logger) *ScriptRunner {
	if l != nil {
		r.logger = l
	}
	return r
}

// WithMetrics attaches metrics. A nil value disables them.
func (r *ScriptRunner) WithMetrics(m *Metrics) *ScriptRunner {
	r.metrics = m
	return r
}

// Run executes steps on the calling goroutine and returns when they are
// done or ctx is cancelled.
func (r *ScriptRunner) Run(ctx context.Context, steps []ScriptStep) error {
	return r.exec(ctx, steps, 0)
}

// Start copies steps and executes them in the background. It returns the
// acknowledgement fed back to the model immediately.
func (r *ScriptRunner) Start(steps []ScriptStep) string {
	program := cloneSteps(steps)

	r.wg.Add(1)
	r.active.Add(1)
	r.metrics.ScriptStarted()
	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)
		start := time.Now()
		if err := r.Run(context.Background(), program); err != nil {
			r.logger.Warn("script aborted", "error", err)
			return
		}
		r.logger.Info("script finished", "steps", len(program), "elapsed", time.Since(start))
	}()

	return fmt.Sprintf("Script started in background (%d steps)", len(program))
}

// Wait blocks until every background script has finished.
func (r *ScriptRunner) Wait() {
	r.wg.Wait()
}

// Active returns the number of running background scripts.
func (r *ScriptRunner) Active() int {
	return int(r.active.Load())
}

func (r *ScriptRunner) exec(ctx context.Context, steps []ScriptStep, depth int) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch step.Cmd {
		case StepGPIO:
			if !device.IsValidOutputPin(step.Pin) {
				r.logger.Warn("script step skipped, invalid output pin", "pin", step.Pin)
				continue
			}
			res := r.pins.SetPin(step.Pin, bool(step.State))
			r.logger.Debug("script gpio", "pin", step.Pin, "result", res)
		case StepDelay:
			if err := r.sleep(ctx, time.Duration(step.Ms)*time.Millisecond); err != nil {
				return err
			}
		case StepLoop:
			if depth+1 > MaxLoopNesting {
				r.logger.Warn("script loop nesting too deep, skipping", "depth", depth+1)
				continue
			}
			for i := 0; i < step.Count; i++ {
				if err := r.exec(ctx, step.Steps, depth+1); err != nil {
					return err
				}
			}
		default:
			r.logger.Warn("unknown script command", "cmd", step.Cmd)
		}
	}
	return nil
}

func cloneSteps(steps []ScriptStep) []ScriptStep {
	if steps == nil {
		return nil
	}
	out := make([]ScriptStep, len(steps))
	for i, s := range steps {
		out[i] = s
		out[i].Steps = cloneSteps(s.Steps)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// scriptSchema is written by hand because steps nest recursively.
func scriptSchema() map[string]any {
	step := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cmd":   map[string]any{"type": "string", "enum": []string{"gpio", "delay", "loop"}},
			"pin":   map[string]any{"type": "integer"},
			"state": map[string]any{"type": "integer", "description": "1 for HIGH, 0 for LOW"},
			"ms":    map[string]any{"type": "integer", "description": "delay in milliseconds"},
			"count": map[string]any{"type": "integer", "description": "loop iterations"},
			"steps": map[string]any{
				"type":        "array",
				"description": "nested steps of a loop",
				"items":       map[string]any{"type": "object"},
			},
		},
		"required": []string{"cmd"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "array",
				"description": "ordered list of steps",
				"items":       step,
			},
		},
		"required": []string{"script"},
	}
}

const scriptUsage = `{script: [{cmd: "gpio", pin: 2, state: 1}, {cmd: "delay", ms: 1000}, {cmd: "loop", count: 5, steps: [...]}]}`
