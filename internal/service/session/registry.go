// Package session maps users to the provider agent created for them.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
)

// Provisioner creates provider agents.
type Provisioner interface {
	CreateAgent(ctx context.Context) (string, error)
}

// Registry resolves a user's agent, creating it at most once per user for
// the lifetime of the store.
type Registry struct {
	store  Store
	prov   Provisioner
	group  singleflight.Group
	logger zerolog.Logger
	now    func() time.Time
}

// NewRegistry builds a registry over store. A nil store means a fresh MemoryStore.
func NewRegistry(store Store, prov Provisioner, logger zerolog.Logger) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		store:  store,
		prov:   prov,
		logger: logger.With().Str("component", "session").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ResolveOrCreate returns the user's agent id and whether it was created by
// this call. Concurrent first-time calls for one user share a single creation
// attempt. A failed creation stores nothing and its error is returned as is.
func (r *Registry) ResolveOrCreate(ctx context.Context, userID string) (string, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", false, errs.E(errs.InvalidInput, "session.resolve", "user id is required")
	}

	if session, ok := r.store.Get(userID); ok {
		return session.AgentID, false, nil
	}

	// The creation must not be torn down by whichever caller started it.
	detached := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(userID, func() (any, error) {
		if session, ok := r.store.Get(userID); ok {
			return resolution{agentID: session.AgentID}, nil
		}

		agentID, err := r.prov.CreateAgent(detached)
		if err != nil {
			r.logger.Warn().Err(err).Str("user_id", userID).Msg("agent provisioning failed")
			return resolution{}, err
		}

		r.store.Put(chat.AgentSession{UserID: userID, AgentID: agentID, CreatedAt: r.now()})
		r.logger.Info().Str("user_id", userID).Str("agent_id", agentID).Msg("agent session stored")
		return resolution{agentID: agentID, created: true}, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(resolution)
	return res.agentID, res.created, nil
}

type resolution struct {
	agentID string
	created bool
}

// Get returns the stored session for userID.
func (r *Registry) Get(userID string) (chat.AgentSession, bool) {
	return r.store.Get(userID)
}

// List returns every stored session in no particular order.
func (r *Registry) List() []chat.AgentSession {
	return r.store.List()
}

// Len returns the number of stored sessions.
func (r *Registry) Len() int {
	return len(r.store.List())
}

// HasAgent reports whether agentID belongs to any stored session.
func (r *Registry) HasAgent(agentID string) bool {
	for _, s := range r.store.List() {
		if s.AgentID == agentID {
			return true
		}
	}
	return false
}
