// Package failover runs a model call against each credential of a pool in order until one
// succeeds, a fatal error occurs, or the pool is exhausted.
package failover

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/socialchef/chefai/internal/credentials"
	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/metrics"
	"github.com/socialchef/chefai/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Task is one attempt of an operation bound to a single credential.
type Task[T any] func(ctx context.Context, cred credentials.Credential) (T, error)

// Orchestrator walks a credential pool strictly in order. It holds no mutable state, so one
// instance can serve concurrent runs.
type Orchestrator struct {
	pool *credentials.Pool
}

// NewOrchestrator creates an orchestrator over pool.
func NewOrchestrator(pool *credentials.Pool) *Orchestrator {
	return &Orchestrator{pool: pool}
}

// Pool returns the pool the orchestrator iterates.
func (o *Orchestrator) Pool() *credentials.Pool {
	return o.pool
}

// Run invokes task once per credential until the first success. A fatal failure is returned
// unchanged without trying further credentials. When every credential fails recoverably, or
// the pool is empty, a CREDENTIALS_EXHAUSTED error wrapping the last failure is returned.
func Run[T any](ctx context.Context, o *Orchestrator, operation string, task Task[T]) (T, error) {
	var zero T
	var lastErr error

	creds := o.pool.Credentials()
	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := attempt(ctx, operation, cred, task)
		if err == nil {
			return result, nil
		}

		signal := SignalOf(err)
		class := Classify(signal)
		metrics.CredentialAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("classification", class.String()),
		))

		if class == Fatal {
			slog.Info("Model call failed with fatal error, not attempting failover",
				"operation", operation,
				"credential", cred.Ordinal,
				"signal", string(signal),
				"error", err.Error())
			return zero, err
		}

		lastErr = err
		metrics.CredentialFailoverTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("signal", string(signal)),
		))
		slog.Warn("Credential failed with recoverable error, attempting failover",
			"operation", operation,
			"credential", cred.Ordinal,
			"remaining", len(creds)-cred.Ordinal,
			"signal", string(signal),
			"error", err.Error())
	}

	if len(creds) > 0 {
		slog.Error("All credentials failed", "operation", operation, "attempts", len(creds))
	}
	return zero, errors.NewCredentialsExhaustedError(len(creds), lastErr)
}

func attempt[T any](ctx context.Context, operation string, cred credentials.Credential, task Task[T]) (T, error) {
	ctx, span := telemetry.Tracer("failover").Start(ctx, "failover.attempt")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("credential.ordinal", strconv.Itoa(cred.Ordinal)),
	)

	result, err := task(ctx, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("failover.signal", string(SignalOf(err))))
		return result, err
	}

	metrics.CredentialAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("classification", "success"),
	))
	return result, nil
}
