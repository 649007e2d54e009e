// Package health tracks whether the RAG backend is reachable.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/ragchat/internal/observe"
	"github.com/user/ragchat/internal/scheduler"
	"github.com/user/ragchat/internal/types"
	logx "github.com/user/ragchat/pkg/logger"
)

const (
	DefaultProbeTimeout  = 5 * time.Second
	DefaultProbeInterval = 30 * time.Second
)

const probeJob = "health-probe"

// Signal is the shared connectivity state. Writers are the probe and the
// request gateway; the last write wins.
type Signal struct {
	*observe.Value[types.ConnectivityState]
}

func NewSignal() *Signal {
	return &Signal{observe.NewValue(types.ConnectivityUnknown)}
}

var _ types.ConnectivitySink = (*Signal)(nil)

// Prober issues the health request. *rag.Client satisfies it.
type Prober interface {
	Health(ctx context.Context) (int, error)
}

// CredentialSource reports whether a credential is configured.
type CredentialSource interface {
	Credential() string
}

// Monitor probes the backend immediately on Start and then periodically.
type Monitor struct {
	prober   Prober
	creds    CredentialSource
	signal   *Signal
	timeout  time.Duration
	interval time.Duration
	sched    *scheduler.Scheduler
	log      zerolog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func NewMonitor(prober Prober, creds CredentialSource, signal *Signal, opts ...Option) *Monitor {
	m := &Monitor{
		prober:   prober,
		creds:    creds,
		signal:   signal,
		timeout:  DefaultProbeTimeout,
		interval: DefaultProbeInterval,
		log:      logx.With("health"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Probe checks the backend once and publishes the result. Without a
// credential no request is made and the state is unknown. A 2xx or 404
// counts as reachable; anything else, including a timeout, does not.
func (m *Monitor) Probe(ctx context.Context) types.ConnectivityState {
	st := m.check(ctx)
	m.signal.Set(st)
	return st
}

func (m *Monitor) check(ctx context.Context) (st types.ConnectivityState) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("health probe panicked")
			st = types.ConnectivityDisconnected
		}
	}()

	if m.creds.Credential() == "" {
		return types.ConnectivityUnknown
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	status, err := m.prober.Health(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("health probe failed")
		return types.ConnectivityDisconnected
	}
	if (status >= 200 && status < 300) || status == http.StatusNotFound {
		return types.ConnectivityConnected
	}
	m.log.Debug().Int("status", status).Msg("health probe rejected")
	return types.ConnectivityDisconnected
}

// Start probes immediately and then every interval until Stop.
func (m *Monitor) Start(ctx context.Context) error {
	m.sched = scheduler.New()
	if err := m.sched.Add(probeJob, scheduler.Every(m.interval), func(ctx context.Context) {
		m.Probe(ctx)
	}); err != nil {
		return err
	}
	m.sched.Start(ctx)
	m.log.Info().Dur("interval", m.interval).Dur("timeout", m.timeout).Msg("connectivity monitor started")
	return m.sched.Trigger(probeJob)
}

// Stop cancels the periodic probe and waits for an in-flight one.
func (m *Monitor) Stop() {
	if m.sched != nil {
		m.sched.Stop()
		m.sched = nil
	}
}
