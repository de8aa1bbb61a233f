// Package report drives per-user measurement sessions from inline command
// codes embedded in the telemetry stream.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/mapadevsports/uwbv2/internal/timeutil"
)

// Command codes carried in the cmd field of a telemetry line.
const (
	CmdDiscard      = 0 // reading excluded from storage and forwarding
	CmdOpenSession  = 1 // open (or update) the user's session
	CmdCloseSession = 3 // close the user's open session
)

// Session is one user-scoped measurement interval. Spans are held as floats
// internally; the storage layer stringifies them (schema quirk of the
// report_sessions table). Name is never set by the command pipeline; it
// exists for report tooling that labels sessions after the fact.
type Session struct {
	ID        int64
	User      string
	Name      *string
	StartedAt *time.Time
	EndedAt   *time.Time
	SpanX     *float64
	SpanY     *float64
}

// Store is the persistence collaborator for sessions.
type Store interface {
	// FindOpenSession returns the most recent session for user with no end
	// time, or nil when the user has none open.
	FindOpenSession(ctx context.Context, user string) (*Session, error)
	CreateSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error
}

// Effect describes what a command did to session state.
type Effect int

const (
	EffectNone Effect = iota
	EffectOpenedOrUpdated
	EffectClosed
)

// Machine applies command codes to per-user session state. It owns the
// transition logic; rows live in the Store.
type Machine struct {
	store Store
	clock timeutil.Clock
}

// NewMachine creates a session state machine over store. A nil clock defaults
// to the real one.
func NewMachine(store Store, clock timeutil.Clock) *Machine {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Machine{store: store, clock: clock}
}

// Apply runs one command against the user's session state and reports the
// effect. Commands other than open/close, and any command without a session
// user, leave session state untouched. Apply is idempotent for open: an
// already-open session is updated in place, its span snapshot refreshed from
// the non-nil values and its start time backfilled if unset.
func (m *Machine) Apply(ctx context.Context, cmd int, user string, spanX, spanY *float64) (Effect, error) {
	if user == "" {
		return EffectNone, nil
	}

	switch cmd {
	case CmdOpenSession:
		return m.open(ctx, user, spanX, spanY)
	case CmdCloseSession:
		return m.close(ctx, user)
	default:
		return EffectNone, nil
	}
}

func (m *Machine) open(ctx context.Context, user string, spanX, spanY *float64) (Effect, error) {
	now := m.clock.Now()

	s, err := m.store.FindOpenSession(ctx, user)
	if err != nil {
		return EffectNone, fmt.Errorf("find open session for %q: %w", user, err)
	}
	if s == nil {
		s = &Session{User: user, StartedAt: &now, SpanX: spanX, SpanY: spanY}
		if err := m.store.CreateSession(ctx, s); err != nil {
			return EffectNone, fmt.Errorf("create session for %q: %w", user, err)
		}
		return EffectOpenedOrUpdated, nil
	}

	if spanX != nil {
		s.SpanX = spanX
	}
	if spanY != nil {
		s.SpanY = spanY
	}
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	if err := m.store.UpdateSession(ctx, s); err != nil {
		return EffectNone, fmt.Errorf("update session %d: %w", s.ID, err)
	}
	return EffectOpenedOrUpdated, nil
}

func (m *Machine) close(ctx context.Context, user string) (Effect, error) {
	s, err := m.store.FindOpenSession(ctx, user)
	if err != nil {
		return EffectNone, fmt.Errorf("find open session for %q: %w", user, err)
	}
	if s == nil {
		return EffectNone, nil
	}

	now := m.clock.Now()
	s.EndedAt = &now
	if err := m.store.UpdateSession(ctx, s); err != nil {
		return EffectNone, fmt.Errorf("close session %d: %w", s.ID, err)
	}
	return EffectClosed, nil
}
