// Package store holds the active flag configuration and applies wholesale
// replacements of it.
//
// Reads operate on an immutable snapshot reached through a single pointer,
// so evaluations never observe a partially applied update: an update parses
// the incoming document completely, then swaps the snapshot under the write
// lock. A failed update leaves the previous snapshot serving.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/barkimedes/go-deepcopy"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/pennon-io/pennon/pkg/config"
	"github.com/pennon-io/pennon/pkg/logger"
	"github.com/pennon-io/pennon/pkg/model"
	"github.com/pennon-io/pennon/pkg/schema"
	"github.com/pennon-io/pennon/pkg/telemetry"
)

// GenerationKey is the set metadata key under which the store records the
// identifier of the currently served configuration generation.
const GenerationKey = "$generationId"

// IStore is the read surface the evaluator depends on.
type IStore interface {
	Get(ctx context.Context, key string) (model.Flag, model.Metadata, bool)
	GetAll(ctx context.Context) (map[string]model.Flag, model.Metadata, error)
}

type snapshot struct {
	flags      map[string]model.Flag
	metadata   model.Metadata
	generation string
	receivedAt time.Time
}

// Store is the flag state holder. The zero value is not usable; construct
// with New.
type Store struct {
	mu       sync.RWMutex
	snapshot *snapshot

	validator schema.Validator
	strict    bool
	logger    *logger.Logger
	metrics   *telemetry.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithValidator makes updates validate documents against the given schema
// validator before parsing. Without it, documents are only checked
// structurally by the parser.
func WithValidator(v schema.Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithStrictValidation makes schema violations reject the update instead of
// being logged and tolerated.
func WithStrictValidation() Option {
	return func(s *Store) { s.strict = true }
}

// WithMetrics attaches update instrumentation.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func New(log *logger.Logger, opts ...Option) *Store {
	s := &Store{logger: log.WithFields(zap.String("component", "store"))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the entire flag configuration with the parsed contents of
// raw and returns the sorted keys of flags that were added, removed or
// mutated relative to the previous configuration. On the first update every
// key is reported. On error the previous configuration keeps serving.
func (s *Store) Update(raw string) ([]string, error) {
	if s.validator != nil {
		if issues := s.validator.Validate([]byte(raw)); len(issues) > 0 {
			if s.strict {
				s.metrics.RecordUpdate(telemetry.UpdateRejected, 0, 0)
				return nil, fmt.Errorf("configuration failed schema validation: %s", schema.Join(issues))
			}
			s.logger.Warn("configuration failed schema validation, applying anyway",
				zap.Int("issues", len(issues)),
				zap.String("first", issues[0].String()))
		}
	}

	set, err := config.Parse(s.logger, raw)
	if err != nil {
		s.metrics.RecordUpdate(telemetry.UpdateFailed, 0, 0)
		return nil, err
	}

	metadata, generation := stampGeneration(set.Metadata)
	next := &snapshot{
		flags:      set.Flags,
		metadata:   metadata,
		generation: generation,
		receivedAt: time.Now(),
	}

	s.mu.Lock()
	previous := s.snapshot
	s.snapshot = next
	s.mu.Unlock()

	changed := diffFlags(previous, next)

	s.logger.Info("flag configuration replaced",
		zap.String("generation", next.generation),
		zap.Int("flags", len(next.flags)),
		zap.Strings("changedFlags", changed))
	s.metrics.RecordUpdate(telemetry.UpdateApplied, len(changed), len(next.flags))

	return changed, nil
}

// UpdateState is an Update variant that reports the outcome as a result
// value rather than an error, for callers that serialize it onward.
func (s *Store) UpdateState(raw string) model.UpdateStateResult {
	changed, err := s.Update(raw)
	if err != nil {
		return model.UpdateStateResult{Error: err.Error()}
	}
	return model.UpdateStateResult{Success: true, ChangedFlags: changed}
}

// Get returns the flag stored under key together with the flag set metadata.
// The metadata is returned even when the flag does not exist, so not-found
// evaluations can still expose it.
func (s *Store) Get(_ context.Context, key string) (model.Flag, model.Metadata, bool) {
	snap := s.current()
	if snap == nil {
		return model.Flag{}, model.Metadata{}, false
	}
	flag, ok := snap.flags[key]
	return flag, maps.Clone(snap.metadata), ok
}

// GetAll returns a copy of the store's flags (copy in order to be
// concurrency safe) together with the flag set metadata.
func (s *Store) GetAll(_ context.Context) (map[string]model.Flag, model.Metadata, error) {
	snap := s.current()
	if snap == nil {
		return map[string]model.Flag{}, model.Metadata{}, nil
	}

	copied, err := deepcopy.Anything(snap.flags)
	if err != nil {
		return nil, nil, fmt.Errorf("copying flag state: %w", err)
	}

	return copied.(map[string]model.Flag), maps.Clone(snap.metadata), nil
}

// Metadata returns the flag set metadata of the current configuration.
func (s *Store) Metadata() model.Metadata {
	snap := s.current()
	if snap == nil {
		return model.Metadata{}
	}
	return maps.Clone(snap.metadata)
}

// Generation returns the identifier stamped on the current configuration,
// or the empty string before the first update.
func (s *Store) Generation() string {
	snap := s.current()
	if snap == nil {
		return ""
	}
	return snap.generation
}

// String renders the current configuration as a JSON document.
func (s *Store) String() (string, error) {
	snap := s.current()
	if snap == nil {
		snap = &snapshot{}
	}

	bytes, err := json.Marshal(map[string]interface{}{
		"flags":    snap.flags,
		"metadata": snap.metadata,
	})
	if err != nil {
		return "", fmt.Errorf("unable to marshal flags: %w", err)
	}

	return string(bytes), nil
}

func (s *Store) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// diffFlags reports the keys that differ between two snapshots: added,
// removed, or structurally unequal across any field.
func diffFlags(previous, next *snapshot) []string {
	changed := make([]string, 0, len(next.flags))

	if previous == nil {
		for key := range next.flags {
			changed = append(changed, key)
		}
		slices.Sort(changed)
		return changed
	}

	for key, nextFlag := range next.flags {
		previousFlag, ok := previous.flags[key]
		if !ok || !reflect.DeepEqual(previousFlag, nextFlag) {
			changed = append(changed, key)
		}
	}
	for key := range previous.flags {
		if _, ok := next.flags[key]; !ok {
			changed = append(changed, key)
		}
	}

	slices.Sort(changed)
	return changed
}

// stampGeneration copies the set metadata with a fresh generation id under
// GenerationKey and returns the id it assigned.
func stampGeneration(metadata model.Metadata) (model.Metadata, string) {
	generation := xid.New().String()
	stamped := model.Metadata{}
	maps.Copy(stamped, metadata)
	stamped[GenerationKey] = generation
	return stamped, generation
}
