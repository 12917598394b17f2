// Package dmp implements the registry core: finding, creating, versioning,
// amending and tombstoning DMP records on top of the key-value gateway.
package dmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/metrics"
	"github.com/dmphub-lab/dmphub/internal/notify"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/dmphub-lab/dmphub/internal/schema"
	"github.com/dmphub-lab/dmphub/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ContractValidator checks a document against a named contract.
// *schema.ContractValidator satisfies it.
type ContractValidator interface {
	Validate(ctx context.Context, scope string, contract schema.Contract, doc map[string]interface{}) ([]*schema.ValidationError, error)
}

// Service is the registry core.
type Service struct {
	kv        storage.Store
	codec     *identifier.Codec
	contracts ContractValidator
	publisher notify.Publisher
	metrics   *metrics.Metrics
	cfg       Config
	tracer    trace.Tracer

	nowFn    func() time.Time
	suffixFn func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records mutation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the registry core.
func NewService(
	kv storage.Store,
	codec *identifier.Codec,
	contracts ContractValidator,
	publisher notify.Publisher,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		kv:        kv,
		codec:     codec,
		contracts: contracts,
		publisher: publisher,
		cfg:       cfg.normalized(),
		tracer:    tracing.Tracer("github.com/dmphub-lab/dmphub/internal/dmp"),
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
		suffixFn: randomSuffix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Codec returns the identifier codec the service was built with.
func (s *Service) Codec() *identifier.Codec {
	return s.codec
}

// validate runs the contract in the provenance's scope and turns violations
// into a *ValidationFailure.
func (s *Service) validate(ctx context.Context, prov *provenance.Provenance, contract schema.Contract, doc map[string]interface{}) error {
	violations, err := s.contracts.Validate(ctx, prov.Name, contract, doc)
	if err != nil {
		return fmt.Errorf("validate %s contract: %w", contract, err)
	}
	if len(violations) > 0 {
		return &ValidationFailure{Contract: contract, Errors: violations}
	}
	return nil
}

func (s *Service) getLatest(ctx context.Context, pk string) (*StoredDMP, error) {
	item, err := s.kv.Get(ctx, pk, identifier.LatestSortKey)
	if err != nil {
		return nil, err
	}
	return decodeItem(item)
}

func (s *Service) put(ctx context.Context, stored *StoredDMP, cond *storage.Condition) error {
	item, err := encodeItem(stored)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, item, cond)
}

// publish is fire-and-forget: a failure is logged and counted, the mutation
// stands.
func (s *Service) publish(ctx context.Context, action notify.Action, stored *StoredDMP, updaterIsOwner bool) {
	if s.publisher == nil {
		return
	}
	event := notify.NewEvent(action, stored.PK, stored.SK, stored.OwningProvenance, relatedLinks(&stored.DMP), updaterIsOwner)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.NotificationFailed()
		slog.Warn("[DMP] Failed to publish change event",
			"action", action,
			"pk", stored.PK,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

// nextModified returns a timestamp, truncated to the second, that is strictly
// later than previous. Snapshot sort keys derive from it and must be unique.
func (s *Service) nextModified(previous time.Time) time.Time {
	now := s.nowFn().UTC().Truncate(time.Second)
	if floor := previous.UTC().Truncate(time.Second).Add(time.Second); now.Before(floor) {
		return floor
	}
	return now
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "dmp."+op, trace.WithAttributes(attrs...))
}

// finish records the outcome of a mutation on its span and in metrics.
func (s *Service) finish(span trace.Span, op string, err error) {
	defer span.End()

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNoChange):
		result = "no_change"
	default:
		result = outcome(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.ObserveMutation(op, result)
}

func outcome(err error) string {
	var vf *ValidationFailure
	switch {
	case errors.As(err, &vf):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrMintingExhausted):
		return "minting_exhausted"
	case errors.Is(err, ErrNoHistoricalMutation):
		return "no_historical_mutation"
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, ErrWriteConflict):
		return "conflict"
	default:
		return "error"
	}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func recordOf(stored *StoredDMP, versions []v1.VersionSnapshot) (*v1.Record, error) {
	item, err := encodeItem(stored)
	if err != nil {
		return nil, err
	}
	return toRecord(item, versions)
}
