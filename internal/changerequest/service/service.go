package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"crboard/internal/changerequest/metrics"
	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/store"
	dErrors "crboard/pkg/domain-errors"
	audit "crboard/pkg/platform/audit"
	"crboard/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks DocumentStore,AuditPublisher

// DocumentStore loads and saves the whole registry document. Save must fail
// with sentinel.ErrConflict when the stored version is no longer expected.
type DocumentStore interface {
	Load(ctx context.Context) (*models.Registry, int64, error)
	Save(ctx context.Context, reg *models.Registry, expected int64) (int64, error)
}

// AuditPublisher receives an event after every saved mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const tracerName = "crboard/changerequest/service"

// Service implements the registry operations. Every mutation is a full
// load, mutate, save cycle. Mutations issued through one Service are
// serialized by mu; writers in other processes are caught by the store's
// compare-and-swap and surface as CodeConflict. The service never retries.
type Service struct {
	store          DocumentStore
	mu             sync.Mutex
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New creates a Service over st.
func New(st DocumentStore, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("document store is required")
	}
	s := &Service{
		store:  st,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// mutate runs fn against a freshly loaded registry and saves the result with
// the loaded version. Nothing is written when fn fails.
func (s *Service) mutate(ctx context.Context, fn func(reg *models.Registry) error) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, version, err := s.store.Load(ctx)
	if err != nil {
		return 0, s.storeError(ctx, err)
	}
	if err := fn(reg); err != nil {
		return 0, err
	}
	next, err := s.store.Save(ctx, reg, version)
	if err != nil {
		return 0, s.storeError(ctx, err)
	}
	return next, nil
}

func (s *Service) load(ctx context.Context) (*models.Registry, error) {
	reg, _, err := s.store.Load(ctx)
	if err != nil {
		return nil, s.storeError(ctx, err)
	}
	return reg, nil
}

// storeError translates store failures into domain errors.
func (s *Service) storeError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		s.logger.WarnContext(ctx, "registry save lost a concurrent update", "error", err)
		return dErrors.Wrap(err, dErrors.CodeConflict, "registry changed concurrently, retry the operation")
	case errors.Is(err, store.ErrCorruptDocument):
		s.logger.ErrorContext(ctx, "registry document is corrupt", "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry document is corrupt")
	default:
		s.logger.ErrorContext(ctx, "registry store unavailable", "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "change request store unavailable")
	}
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ChangeRequestService."+op, trace.WithAttributes(attrs...))
}

// finish ends span and records the operation outcome.
func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, outcome, start)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit change event", "action", event.Action, "cr_id", event.Subject, "error", err)
	}
}
