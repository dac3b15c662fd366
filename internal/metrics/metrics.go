// Package metrics exposes the engine's OpenTelemetry instruments through
// a Prometheus /metrics handler.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/Alpha-Mintamir/reddit-telegram-bot"

// Common attribute keys.
var (
	AttrTeam   = attribute.Key("team")
	AttrStatus = attribute.Key("status")
	AttrReason = attribute.Key("reason")
)

// InitMeterProvider initializes the global MeterProvider with a Prometheus
// exporter and returns the handler serving /metrics. Call once at startup.
func InitMeterProvider(ctx context.Context, serviceName string) (http.Handler, error) {
	if serviceName == "" {
		serviceName = "replybot"
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otelglobal.SetMeterProvider(provider)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}), nil
}

// Meter returns the global meter (after InitMeterProvider).
func Meter() metric.Meter {
	return otelglobal.Meter(meterName)
}

var (
	initOnce           sync.Once
	ticksCounter       metric.Int64Counter
	tickDuration       metric.Float64Histogram
	tasksCreated       metric.Int64Counter
	tasksDispatched    metric.Int64Counter
	reassignments      metric.Int64Counter
	escalations        metric.Int64Counter
	escalationDrops    metric.Int64Counter
	unsafeSubstituted  metric.Int64Counter
	emergencyEscCounts metric.Int64Counter
)

// Init creates the instruments. Safe to call multiple times; only runs
// once. Call after InitMeterProvider.
func Init(ctx context.Context) error {
	var err error
	initOnce.Do(func() {
		m := Meter()
		ticksCounter, err = m.Int64Counter("replybot_ticks_total", metric.WithDescription("Ticks run, by outcome"))
		if err != nil {
			return
		}
		tickDuration, err = m.Float64Histogram("replybot_tick_duration_seconds", metric.WithDescription("Tick duration in seconds"))
		if err != nil {
			return
		}
		tasksCreated, err = m.Int64Counter("replybot_tasks_created_total", metric.WithDescription("Reply tasks created"))
		if err != nil {
			return
		}
		tasksDispatched, err = m.Int64Counter("replybot_tasks_dispatched_total", metric.WithDescription("Reply tasks dispatched to assignees"))
		if err != nil {
			return
		}
		reassignments, err = m.Int64Counter("replybot_reassignments_total", metric.WithDescription("Stale tasks moved to another member"))
		if err != nil {
			return
		}
		escalations, err = m.Int64Counter("replybot_escalations_total", metric.WithDescription("Escalations sent to the supervisor, by reason"))
		if err != nil {
			return
		}
		escalationDrops, err = m.Int64Counter("replybot_escalations_dropped_total", metric.WithDescription("Escalations dropped because no supervisor handle resolved"))
		if err != nil {
			return
		}
		unsafeSubstituted, err = m.Int64Counter("replybot_unsafe_fallbacks_total", metric.WithDescription("Generated replies replaced by the safe fallback"))
		if err != nil {
			return
		}
		emergencyEscCounts, err = m.Int64Counter("replybot_emergency_escalations_total", metric.WithDescription("Emergency escalations after consecutive tick failures"))
	})
	return err
}

// RecordTick records one tick and its duration.
func RecordTick(ctx context.Context, ok bool, d time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	if ticksCounter != nil {
		ticksCounter.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(status)))
	}
	if tickDuration != nil {
		tickDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrStatus.String(status)))
	}
}

// RecordTaskCreated records one task creation for a team.
func RecordTaskCreated(ctx context.Context, team string) {
	if tasksCreated != nil {
		tasksCreated.Add(ctx, 1, metric.WithAttributes(AttrTeam.String(team)))
	}
}

// RecordDispatch records one dispatch to an assignee.
func RecordDispatch(ctx context.Context, team string) {
	if tasksDispatched != nil {
		tasksDispatched.Add(ctx, 1, metric.WithAttributes(AttrTeam.String(team)))
	}
}

// RecordReassignment records one stale-task reassignment.
func RecordReassignment(ctx context.Context, team string) {
	if reassignments != nil {
		reassignments.Add(ctx, 1, metric.WithAttributes(AttrTeam.String(team)))
	}
}

// RecordEscalation records one supervisor escalation. delivered=false
// means the escalation was dropped, the one failure mode operators must
// be able to alarm on.
func RecordEscalation(ctx context.Context, reason string, delivered bool) {
	if escalations != nil {
		escalations.Add(ctx, 1, metric.WithAttributes(AttrReason.String(reason)))
	}
	if !delivered && escalationDrops != nil {
		escalationDrops.Add(ctx, 1, metric.WithAttributes(AttrReason.String(reason)))
	}
}

// RecordUnsafeFallback records a generated reply replaced by Fallback.
func RecordUnsafeFallback(ctx context.Context) {
	if unsafeSubstituted != nil {
		unsafeSubstituted.Add(ctx, 1)
	}
}

// RecordEmergencyEscalation records a consecutive-failure emergency alert.
func RecordEmergencyEscalation(ctx context.Context) {
	if emergencyEscCounts != nil {
		emergencyEscCounts.Add(ctx, 1)
	}
}
