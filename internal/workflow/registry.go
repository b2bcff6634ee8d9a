package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type registryEntry struct {
	ws       *Workspace
	lastUsed time.Time
}

// Registry holds one workspace per signed-in user.
type Registry struct {
	deps Deps
	opts Options
	log  zerolog.Logger

	mu         sync.Mutex
	workspaces map[string]*registryEntry
}

func NewRegistry(deps Deps, opts Options, log zerolog.Logger) *Registry {
	return &Registry{
		deps:       deps,
		opts:       opts,
		log:        log,
		workspaces: make(map[string]*registryEntry),
	}
}

// Get returns the owner's workspace, creating it and loading its history on
// first use. A failed history load leaves the message on the workspace and
// still returns it.
func (r *Registry) Get(ctx context.Context, ownerID string) *Workspace {
	r.mu.Lock()
	entry, ok := r.workspaces[ownerID]
	if !ok {
		entry = &registryEntry{ws: NewWorkspace(ownerID, r.deps, r.opts, r.log)}
		r.workspaces[ownerID] = entry
	}
	entry.lastUsed = time.Now()
	ws := entry.ws
	r.mu.Unlock()

	if !ok {
		_ = ws.LoadHistory(ctx)
	}
	return ws
}

// Drop forgets the owner's workspace, e.g. on sign-out.
func (r *Registry) Drop(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[ownerID]; ok {
		delete(r.workspaces, ownerID)
		r.log.Debug().Str("owner_id", ownerID).Msg("Workspace dropped")
	}
}

// EvictIdle drops workspaces not used for maxIdle as of now, except those
// with a request in flight. It returns how many were dropped.
func (r *Registry) EvictIdle(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for ownerID, entry := range r.workspaces {
		if now.Sub(entry.lastUsed) < maxIdle || entry.ws.Snapshot().Status == StatusLoading {
			continue
		}
		delete(r.workspaces, ownerID)
		evicted++
	}
	if evicted > 0 {
		r.log.Debug().Int("count", evicted).Dur("max_idle", maxIdle).Msg("Idle workspaces evicted")
	}
	return evicted
}

// RunEviction calls EvictIdle periodically until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, maxIdle time.Duration) {
	interval := maxIdle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.EvictIdle(now, maxIdle)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}
