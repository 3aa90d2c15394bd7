package sessionkit

import (
	"errors"
	"log/slog"

	"github.com/homechef/sessionkit/backend"
	"github.com/homechef/sessionkit/snapshot"
)

// Builder assembles a Manager. A Builder is single-use: Build may be called
// once.
type Builder struct {
	config  Config
	backend backend.Backend
	store   snapshot.Store

	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBackend sets the credential backend. Required.
func (b *Builder) WithBackend(be backend.Backend) *Builder {
	b.backend = be
	return b
}

// WithStore sets the snapshot store. Required.
func (b *Builder) WithStore(s snapshot.Store) *Builder {
	b.store = s
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the Manager. The returned
// Manager is in StateUnknown until Start completes.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.backend == nil {
		return nil, errors.New("credential backend required")
	}
	if b.store == nil {
		return nil, errors.New("snapshot store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		config:  b.config,
		backend: b.backend,
		store:   b.store,
		logger:  logger,
		audit:   newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics: NewMetrics(b.config.Metrics),
		events:  newEventDispatcher(b.config.Events.BufferSize),
		state:   StateUnknown,
	}

	b.built = true

	return m, nil
}
