package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"becoming/internal/becoming/metrics"
	"becoming/internal/becoming/ports"
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/events"
	"becoming/pkg/platform/middleware/metadata"
	"becoming/pkg/requestcontext"
)

const instrumentationName = "becoming/internal/becoming/service"

const (
	opMint         = "mint"
	opAddMilestone = "add_milestone"
	opTip          = "tip"
	opTransfer     = "transfer"
	opAvatarStage  = "get_avatar_stage"
	opMilestones   = "get_milestones"
	opOwner        = "get_owner"
	opProfile      = "get_profile"
	opExportData   = "export_data"
	opUpdateAdmin  = "update_admin"

	opNotifications = "get_notifications"
)

// Service executes the record store operations. Every mutating call runs as
// one transaction: the state change and its notifications commit together
// or not at all.
type Service struct {
	records ports.RecordReader
	tx      ports.RecordStoreTx
	ledger  ports.Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	notifications events.Reader
}

type Option func(s *Service)

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

// WithEventReader serves Notifications from r.
func WithEventReader(r events.Reader) Option {
	return func(s *Service) {
		s.notifications = r
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
	}
}

// New constructs a Service.
func New(records ports.RecordReader, tx ports.RecordStoreTx, ledger ports.Ledger, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, errors.New("record reader is required")
	}
	if tx == nil {
		return nil, errors.New("record transaction runner is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	s := &Service{
		records: records,
		tx:      tx,
		ledger:  ledger,
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// begin opens a span for operation and returns a func that closes it and
// records the outcome.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "becoming."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("becoming.operation", operation)),
	)
	if caller, ok := requestcontext.Caller(ctx); ok {
		span.SetAttributes(attribute.String("becoming.caller", caller.String()))
	}
	return ctx, func(err error) {
		if err != nil {
			code := dErrors.GetCode(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, string(code))
			if s.metrics != nil {
				s.metrics.IncrementRejected(operation, string(code))
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, start)
		}
		span.End()
	}
}

func callerFrom(ctx context.Context) (id.AccountID, error) {
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		return id.AccountID{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	return caller, nil
}

// emit captures n in the transaction's event store.
func (s *Service) emit(ctx context.Context, store events.Store, n events.Notification) error {
	event, err := events.New(n, requestcontext.Now(ctx), requestcontext.RequestID(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode notification")
	}
	if err := store.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record notification")
	}
	return nil
}

// domainError passes coded errors through and marks anything else internal.
func domainError(err error, message string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if client, ok := metadata.LookupClient(ctx); ok {
		attributes = append(attributes, "client", client.String())
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
