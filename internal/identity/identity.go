// ABOUTME: Holds the operator's agent id, persists it, and announces it to the transport
// ABOUTME: Memory is authoritative; persistence failures are logged and swallowed

package identity

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/2389/gate-console/internal/callerr"
	"github.com/2389/gate-console/internal/store"
)

// Persister stores the agent id across restarts.
type Persister interface {
	GetAgentID(ctx context.Context) (int, error)
	SetAgentID(ctx context.Context, id int) error
}

// Announcer sends register(agentId) on the transport.
type Announcer interface {
	Connected() bool
	Register(ctx context.Context, agentID int) error
}

// Store is the agent identity. The zero id means unset.
type Store struct {
	mu        sync.Mutex
	id        int
	allowed   []int
	persister Persister
	announcer Announcer
	logger    *slog.Logger
}

// New creates an identity store accepting only ids in allowed.
// persister and announcer may be nil.
func New(allowed []int, persister Persister, announcer Announcer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		allowed:   slices.Clone(allowed),
		persister: persister,
		announcer: announcer,
		logger:    logger.With("component", "identity"),
	}
}

// SetAnnouncer attaches the transport once it exists.
func (s *Store) SetAnnouncer(a Announcer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announcer = a
}

// Allowed returns the selectable ids.
func (s *Store) Allowed() []int {
	return slices.Clone(s.allowed)
}

// Restore loads a previously persisted id. A missing or no-longer-allowed
// id leaves the store unset.
func (s *Store) Restore(ctx context.Context) (int, bool) {
	if s.persister == nil {
		return 0, false
	}
	id, err := s.persister.GetAgentID(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to restore agent id", "error", err)
		}
		return 0, false
	}
	if !slices.Contains(s.allowed, id) {
		s.logger.Warn("ignoring persisted agent id outside allowed set", "agent_id", id)
		return 0, false
	}

	s.mu.Lock()
	s.id = id
	s.mu.Unlock()

	s.logger.Info("agent id restored", "agent_id", id)
	return id, true
}

// Get returns the current id.
func (s *Store) Get() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != 0
}

// Set validates, stores, persists and, when connected, announces id.
func (s *Store) Set(ctx context.Context, id int) error {
	if !slices.Contains(s.allowed, id) {
		return callerr.Invalid("agent_id", strconv.Itoa(id)+" is not one of "+formatIDs(s.allowed))
	}

	s.mu.Lock()
	s.id = id
	announcer := s.announcer
	s.mu.Unlock()

	s.logger.Info("agent id set", "agent_id", id)

	if s.persister != nil {
		if err := s.persister.SetAgentID(ctx, id); err != nil {
			s.logger.Warn("failed to persist agent id", "agent_id", id, "error", err)
		}
	}

	if announcer != nil && announcer.Connected() {
		s.announce(ctx, announcer, id)
	}
	return nil
}

// OnConnected re-announces the id after every (re)connect.
func (s *Store) OnConnected(ctx context.Context) {
	s.mu.Lock()
	id, announcer := s.id, s.announcer
	s.mu.Unlock()

	if id == 0 || announcer == nil {
		return
	}
	s.announce(ctx, announcer, id)
}

func (s *Store) announce(ctx context.Context, a Announcer, id int) {
	if err := a.Register(ctx, id); err != nil {
		// The next connect re-announces.
		s.logger.Warn("failed to register agent", "agent_id", id, "error", err)
		return
	}
	s.logger.Debug("agent registered", "agent_id", id)
}

func formatIDs(ids []int) string {
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(id)
	}
	return out + "}"
}
