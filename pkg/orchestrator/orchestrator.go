// Package orchestrator sequences backend writes into sagas, rebuilds the
// entity store from full-collection queries and publishes snapshots.
package orchestrator

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/psantana5/sitesync/pkg/backend"
	"github.com/psantana5/sitesync/pkg/config"
	"github.com/psantana5/sitesync/pkg/logging"
	"github.com/psantana5/sitesync/pkg/metrics"
	"github.com/psantana5/sitesync/pkg/resolver"
	"github.com/psantana5/sitesync/pkg/store"
)

// Orchestrator runs commands for one user session
type Orchestrator struct {
	cfg      config.Config
	client   *backend.Client
	store    *store.Store
	logger   *logging.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time

	mu          sync.RWMutex
	state       State
	userID      string
	subscribers map[int]func(store.Snapshot)
	nextSub     int
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the command logger
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records command outcomes and store sizes
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now for timestamps written by commands
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithValidator replaces the input validator
func WithValidator(v *validator.Validate) Option {
	return func(o *Orchestrator) { o.validate = v }
}

// New creates an orchestrator. The session user starts as cfg.UserID.
func New(cfg config.Config, client *backend.Client, st *store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		client:      client,
		store:       st,
		logger:      logging.Discard(),
		now:         time.Now,
		userID:      cfg.UserID,
		subscribers: make(map[int]func(store.Snapshot)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validate == nil {
		o.validate = newValidator()
	}
	if o.cfg.RefreshConcurrency <= 0 {
		o.cfg.RefreshConcurrency = 1
	}
	return o
}

// State returns the phase of the most recent command
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// UserID returns the session user
func (o *Orchestrator) UserID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.userID
}

// SetUserID switches the session user. Cached records of the previous
// user are dropped.
func (o *Orchestrator) SetUserID(id string) {
	o.mu.Lock()
	changed := o.userID != id
	o.userID = id
	o.mu.Unlock()
	if changed {
		o.store.Reset()
	}
}

// Subscribe registers fn to receive a snapshot after every successful
// command or refresh. The returned func removes the subscription.
func (o *Orchestrator) Subscribe(fn func(store.Snapshot)) (cancel func()) {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subscribers, id)
			o.mu.Unlock()
		})
	}
}

func (o *Orchestrator) notify() {
	o.mu.RLock()
	subs := make([]func(store.Snapshot), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		subs = append(subs, fn)
	}
	o.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	snap := o.store.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}

// Snapshot returns the current store contents
func (o *Orchestrator) Snapshot() store.Snapshot {
	return o.store.Snapshot()
}

// Dashboard summarizes the current store contents
func (o *Orchestrator) Dashboard() resolver.Dashboard {
	return resolver.Summarize(o.store.Snapshot())
}

func (o *Orchestrator) timestamp() time.Time {
	return o.now()
}
