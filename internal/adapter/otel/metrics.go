// Package otel provides OpenTelemetry metric instruments for the sync engine.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "syncd"

// Metrics holds all syncd metric instruments.
type Metrics struct {
	RunsStarted    metric.Int64Counter
	RunsCompleted  metric.Int64Counter
	RunsFailed     metric.Int64Counter
	ItemsProcessed metric.Int64Counter
	ItemsUpdated   metric.Int64Counter
	RunDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("syncd.runs.started",
		metric.WithDescription("Number of sync runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("syncd.runs.completed",
		metric.WithDescription("Number of sync runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("syncd.runs.failed",
		metric.WithDescription("Number of sync runs failed"))
	if err != nil {
		return nil, err
	}

	m.ItemsProcessed, err = meter.Int64Counter("syncd.items.processed",
		metric.WithDescription("Number of remote items examined"))
	if err != nil {
		return nil, err
	}

	m.ItemsUpdated, err = meter.Int64Counter("syncd.items.updated",
		metric.WithDescription("Number of items written to the local store"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("syncd.run.duration_seconds",
		metric.WithDescription("Sync run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
