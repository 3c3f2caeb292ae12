package transport

import (
	"context"
	"sync"

	"github.com/oraraka-deko/microclaw/claw"
)

// Handler runs one agent turn.
type Handler interface {
	Handle(ctx context.Context, in claw.TurnInput) claw.Output
}

// Serial lets one turn run at a time across every transport sharing it.
type Serial struct {
	mu   sync.Mutex
	next Handler
}

func NewSerial(next Handler) *Serial {
	return &Serial{next: next}
}

func (s *Serial) Handle(ctx context.Context, in claw.TurnInput) claw.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Handle(ctx, in)
}
