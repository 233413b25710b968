// Package store persists the change request registry as a single versioned
// JSON document.
//
// Backends only move opaque bytes and compare version tokens. Store layers
// decoding, first-load seeding and metrics on top of any Backend. Saves are
// compare-and-swap: a Put whose expected version no longer matches the stored
// one fails with sentinel.ErrConflict and writes nothing.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"crboard/internal/changerequest/metrics"
	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/store/seed"
	"crboard/pkg/platform/sentinel"
)

// ErrCorruptDocument is returned when the stored document cannot be decoded.
var ErrCorruptDocument = errors.New("registry document is corrupt")

// Backend persists the raw registry document together with a version token.
// Version 0 means "no document".
type Backend interface {
	// Get returns the stored document and its version, or sentinel.ErrNotFound
	// when nothing has been written yet.
	Get(ctx context.Context) (doc []byte, version int64, err error)
	// Put replaces the document if the stored version equals expected and
	// returns the new version. expected == 0 creates the document only if none
	// exists. Any mismatch returns sentinel.ErrConflict.
	Put(ctx context.Context, doc []byte, expected int64) (int64, error)
}

// Store loads and saves the registry document through a Backend, seeding an
// empty backend from the bootstrap document on first load.
type Store struct {
	backend Backend
	seed    []byte
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithSeed overrides the embedded bootstrap document.
func WithSeed(doc []byte) Option {
	return func(s *Store) {
		if len(doc) > 0 {
			s.seed = doc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		seed:    seed.Default(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the current registry and its version. When the backend holds
// no document the bootstrap document is written first; concurrent first loads
// in this process share one seed attempt, and a seed lost to another process
// re-reads the winner's document instead of overwriting it.
func (s *Store) Load(ctx context.Context) (*models.Registry, int64, error) {
	doc, version, err := s.backend.Get(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		doc, version, err = s.seedOnce(ctx)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load registry: %w", err)
	}

	var reg models.Registry
	if err := json.Unmarshal(doc, &reg); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}
	if s.metrics != nil {
		s.metrics.SetRegistrySize(reg.Len())
	}
	return &reg, version, nil
}

// Save replaces the stored document with reg if the stored version is still
// expected, returning the new version.
func (s *Store) Save(ctx context.Context, reg *models.Registry, expected int64) (int64, error) {
	doc, err := json.Marshal(reg)
	if err != nil {
		return 0, fmt.Errorf("encode registry: %w", err)
	}
	version, err := s.backend.Put(ctx, doc, expected)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) && s.metrics != nil {
			s.metrics.IncrementConflicts()
		}
		return 0, fmt.Errorf("save registry: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetRegistrySize(reg.Len())
	}
	return version, nil
}

type seeded struct {
	doc     []byte
	version int64
}

// seedOnce writes the bootstrap document once for all concurrent callers. The
// write is detached from the caller that happens to run it, so cancelling that
// one request does not fail the others waiting on the same seed.
func (s *Store) seedOnce(ctx context.Context) ([]byte, int64, error) {
	v, err, _ := s.group.Do("seed", func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		version, err := s.backend.Put(ctx, s.seed, 0)
		if err == nil {
			s.logger.InfoContext(ctx, "registry seeded from bootstrap document", "version", version)
			if s.metrics != nil {
				s.metrics.IncrementSeeds()
			}
			return seeded{doc: s.seed, version: version}, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, fmt.Errorf("seed registry: %w", err)
		}
		doc, version, err := s.backend.Get(ctx)
		if err != nil {
			return nil, err
		}
		return seeded{doc: doc, version: version}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	res := v.(seeded)
	return res.doc, res.version, nil
}
