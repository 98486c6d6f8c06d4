package otelinit

import (
	"context"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics bundles the counters and histograms the chain driver, task
// lifecycle, and pool supervisor emit.
type Metrics struct {
	ChainRuns     metric.Int64Counter
	TaskRetries   metric.Int64Counter
	TaskDuration  metric.Float64Histogram
	PoolActive    metric.Int64UpDownCounter
	Shutdown      func(context.Context) error
}

// InitMetrics configures a MeterProvider and the instruments used
// throughout the engine. Falls back to a no-op meter when
// OTEL_EXPORTER_OTLP_ENDPOINT is unset.
func InitMetrics(ctx context.Context) (*Metrics, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	var meter metric.Meter
	shutdown := func(context.Context) error { return nil }

	if endpoint != "" {
		exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, err
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))),
		)
		otel.SetMeterProvider(mp)
		meter = mp.Meter(serviceName)
		shutdown = mp.Shutdown
	} else {
		meter = otel.Meter(serviceName)
	}

	chainRuns, err := meter.Int64Counter("taskengine_chain_runs_total")
	if err != nil {
		return nil, err
	}
	taskRetries, err := meter.Int64Counter("taskengine_task_retries_total")
	if err != nil {
		return nil, err
	}
	taskDuration, err := meter.Float64Histogram("taskengine_task_duration_ms")
	if err != nil {
		return nil, err
	}
	poolActive, err := meter.Int64UpDownCounter("taskengine_pool_active_workers")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ChainRuns:    chainRuns,
		TaskRetries:  taskRetries,
		TaskDuration: taskDuration,
		PoolActive:   poolActive,
		Shutdown:     shutdown,
	}, nil
}

// Package-level instrument handles, lazily resolved against whatever
// MeterProvider is globally registered at first use. Mirrors Tracer():
// callers that just want to emit a measurement (internal/chain,
// internal/task, internal/pool) do not need a *Metrics handle threaded
// through their constructors; cmd/taskrunner still calls InitMetrics once
// at startup to register the real OTLP-backed provider before any of that
// ambient emission happens.
var (
	instrumentsOnce sync.Once
	chainRunsCtr    metric.Int64Counter
	taskRetriesCtr  metric.Int64Counter
	taskDurationH   metric.Float64Histogram
	poolActiveCtr   metric.Int64UpDownCounter
)

func instruments() {
	meter := otel.Meter(serviceName)
	chainRunsCtr, _ = meter.Int64Counter("taskengine_chain_runs_total")
	taskRetriesCtr, _ = meter.Int64Counter("taskengine_task_retries_total")
	taskDurationH, _ = meter.Float64Histogram("taskengine_task_duration_ms")
	poolActiveCtr, _ = meter.Int64UpDownCounter("taskengine_pool_active_workers")
}

// ChainRunsCounter returns the shared "chain started" counter.
func ChainRunsCounter() metric.Int64Counter {
	instrumentsOnce.Do(instruments)
	return chainRunsCtr
}

// TaskRetriesCounter returns the shared "task attempt retried" counter.
func TaskRetriesCounter() metric.Int64Counter {
	instrumentsOnce.Do(instruments)
	return taskRetriesCtr
}

// TaskDurationHistogram returns the shared per-task duration histogram, in
// milliseconds.
func TaskDurationHistogram() metric.Float64Histogram {
	instrumentsOnce.Do(instruments)
	return taskDurationH
}

// PoolActiveGauge returns the shared pool active-worker up/down counter.
func PoolActiveGauge() metric.Int64UpDownCounter {
	instrumentsOnce.Do(instruments)
	return poolActiveCtr
}
