package optimistic

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AndreEgeli/theAtlasBoard/cache"
)

const (
	tracerName   = "github.com/AndreEgeli/theAtlasBoard/optimistic"
	spanName     = "optimistic.mutate"
	settledEvent = "optimistic.mutation.settled"
)

type mutationObservation struct {
	logger     *log.Logger
	span       trace.Span
	name       string
	key        cache.Key
	start      time.Time
	applied    bool
	rolledBack bool
}

func (e *Engine) observe(ctx context.Context, name string, key cache.Key) (context.Context, *mutationObservation) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("optimistic.mutation", name),
			attribute.String("optimistic.key", key.String()),
		),
	)
	return ctx, &mutationObservation{
		logger: e.logger,
		span:   span,
		name:   name,
		key:    key,
		start:  time.Now(),
	}
}

func (o *mutationObservation) SetApplied(applied bool) {
	o.applied = applied
}

func (o *mutationObservation) SetRolledBack(rolledBack bool) {
	o.rolledBack = rolledBack
}

func (o *mutationObservation) Finish(err error) {
	outcome := "committed"
	if err != nil {
		outcome = "failed"
	}
	o.span.SetAttributes(
		attribute.Bool("optimistic.applied", o.applied),
		attribute.Bool("optimistic.rolled_back", o.rolledBack),
		attribute.String("optimistic.outcome", outcome),
	)
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
	o.span.End()

	fields := log.Fields{
		"mutation":    o.name,
		"key":         o.key.String(),
		"applied":     o.applied,
		"rolled_back": o.rolledBack,
		"outcome":     outcome,
		"total_ms":    float64(time.Since(o.start)) / float64(time.Millisecond),
	}
	if err != nil {
		o.logger.WithFields(fields).WithError(err).Warn(settledEvent)
		return
	}
	o.logger.WithFields(fields).Debug(settledEvent)
}
