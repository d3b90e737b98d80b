package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/welcomer/internal/errors"
)

// StartSessionSpan creates the root span of one onboarding session.
//
// Usage:
//
//	ctx, span := telemetry.StartSessionSpan(ctx, s.ID, s.GuildID, s.MemberID, "join")
//	defer span.End()
func StartSessionSpan(ctx context.Context, sessionID, guildID, memberID, trigger string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("sessions")
	ctx, span := tracer.Start(ctx, "session.run")

	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("guild.id", guildID),
		attribute.String("member.id", memberID),
		attribute.String("session.trigger", trigger),
		attribute.String("component", "session"),
	)

	return ctx, span
}

// StartQuestionSpan creates a child span covering one question.
func StartQuestionSpan(ctx context.Context, kind string, index int) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("sessions")
	ctx, span := tracer.Start(ctx, "session.question")

	span.SetAttributes(
		attribute.String("question.kind", kind),
		attribute.Int("question.index", index),
	)

	return ctx, span
}

// StartReconcileSpan creates the span of a startup sweep over one guild.
func StartReconcileSpan(ctx context.Context, guildID string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("reconcile")
	ctx, span := tracer.Start(ctx, "reconcile.guild")

	span.SetAttributes(
		attribute.String("guild.id", guildID),
		attribute.String("component", "reconcile"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
//
// Usage:
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	    return err
//	}
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
	if code := errors.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String("error.code", string(code)))
	}
}
