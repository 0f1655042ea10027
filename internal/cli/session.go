package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/storekit/internal/durable"
	"github.com/roach88/storekit/internal/event"
	"github.com/roach88/storekit/internal/kv"
	"github.com/roach88/storekit/internal/schema"
)

// session is one command's view of the configured backend.
type session struct {
	cfg    *Config
	kv     kv.KV
	bus    *event.Bus
	logger *slog.Logger
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Backend.Kind = BackendSQLite
		cfg.Backend.Path = opts.Database
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := openKV(ctx, cfg.Backend)
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeBackend, Message: "opening " + cfg.Backend.Kind + " backend", Err: err}
	}
	logger.Debug("backend opened", "kind", cfg.Backend.Kind)

	return &session{
		cfg:    cfg,
		kv:     store,
		bus:    event.NewBus(event.WithLogger(logger)),
		logger: logger,
	}, nil
}

func openKV(ctx context.Context, b BackendConfig) (kv.KV, error) {
	switch b.Kind {
	case BackendRedis:
		return kv.DialRedis(ctx, b.Addr, b.DB, kv.WithPrefix(b.Prefix))
	case BackendMemory:
		return kv.NewMemory(), nil
	default:
		return kv.OpenSQLite(b.Path)
	}
}

// store returns the adapter for name and its validator. Writes through the
// adapter are strict, so rejected writes surface as errors.
func (s *session) store(name string) (*durable.Adapter, schema.Validator, error) {
	sc := s.cfg.Store(name)
	v, err := sc.Validator(name)
	if err != nil {
		return nil, nil, err
	}
	a := durable.New(name, s.kv, v,
		durable.WithKey(sc.Key),
		durable.WithBus(s.bus),
		durable.WithLogger(s.logger),
		durable.WithStrict(),
	)
	if v == nil {
		v = schema.Any
	}
	return a, v, nil
}

func (s *session) Close() error {
	if err := s.kv.Close(); err != nil {
		s.logger.Error("error closing backend", "error", err)
		return err
	}
	return nil
}

// errNotFound marks a missing key or store slot.
var errNotFound = errors.New("not found")
