// Package runtime assembles the engine's pieces into a runnable unit: a flag
// store fed by sync sources and a resolver reading from it.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pennon-io/pennon/pkg/evaluator"
	"github.com/pennon-io/pennon/pkg/logger"
	"github.com/pennon-io/pennon/pkg/schema"
	"github.com/pennon-io/pennon/pkg/store"
	filesync "github.com/pennon-io/pennon/pkg/sync/file"
	"github.com/pennon-io/pennon/pkg/telemetry"
)

// Config selects the pieces a Runtime is assembled from.
type Config struct {
	// URI is the path of the flag configuration file to load and watch.
	URI string
	// StrictValidation rejects configurations that fail schema validation
	// instead of applying them with a warning.
	StrictValidation bool
	// Metrics enables instrumentation of the store and resolver when
	// non-nil.
	Metrics *telemetry.Metrics
}

// Syncer keeps the store in step with one configuration source until the
// context is cancelled.
type Syncer interface {
	Run(ctx context.Context) error
}

// Runtime owns one flag store, the resolver reading from it and the sync
// sources feeding it.
type Runtime struct {
	Store    *store.Store
	Resolver *evaluator.Resolver

	logger *logger.Logger
	syncs  []Syncer
}

// FromConfig assembles a Runtime with the embedded schema validator and, when
// cfg.URI is set, a file sync source.
func FromConfig(log *logger.Logger, cfg Config) (*Runtime, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("building schema validator: %w", err)
	}

	storeOpts := []store.Option{store.WithValidator(validator)}
	if cfg.StrictValidation {
		storeOpts = append(storeOpts, store.WithStrictValidation())
	}
	if cfg.Metrics != nil {
		storeOpts = append(storeOpts, store.WithMetrics(cfg.Metrics))
	}
	flagStore := store.New(log, storeOpts...)

	var resolverOpts []evaluator.Option
	if cfg.Metrics != nil {
		resolverOpts = append(resolverOpts, evaluator.WithMetrics(cfg.Metrics))
	}

	rt := &Runtime{
		Store:    flagStore,
		Resolver: evaluator.NewResolver(log, flagStore, resolverOpts...),
		logger:   log.WithFields(zap.String("component", "runtime")),
	}
	if cfg.URI != "" {
		rt.syncs = append(rt.syncs, filesync.New(log, flagStore, cfg.URI))
	}

	return rt, nil
}

// Start runs every sync source and blocks until the context is cancelled or
// one of them fails.
func (r *Runtime) Start(ctx context.Context) error {
	if len(r.syncs) == 0 {
		return errors.New("no sync sources configured")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, s := range r.syncs {
		group.Go(func() error { return s.Run(groupCtx) })
	}

	r.logger.Info("runtime started", zap.Int("syncs", len(r.syncs)))
	return group.Wait()
}
