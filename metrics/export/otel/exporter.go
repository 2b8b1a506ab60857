package otel

import (
	"context"
	"errors"

	goCtrl "github.com/MrEthical07/goCtrl"
	"github.com/MrEthical07/goCtrl/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when the provided meter is nil.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when the provided metrics source is nil.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goCtrl.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         goCtrl.MetricID
	instrument metric.Int64ObservableCounter
}

// OTelExporter registers goCtrl counters as observable instruments on a
// meter. Unregister stops collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter creates an exporter reading from the given
// [goCtrl.Client].
func NewOTelExporter(meter metric.Meter, client *goCtrl.Client) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource creates an exporter from a custom source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+1)
	for _, def := range internaldefs.CounterDefs {
		instrument, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, err
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: instrument})
		observables = append(observables, instrument)
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedDef.Name,
		metric.WithDescription(internaldefs.AuditDroppedDef.Help),
	)
	if err != nil {
		return nil, err
	}
	exporter.auditDropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(exporter.collect, observables...)
	if err != nil {
		return nil, err
	}
	exporter.registration = registration

	return exporter, nil
}

func (e *OTelExporter) collect(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, counter := range e.counters {
		observer.ObserveInt64(counter.instrument, int64(snapshot.Counters[counter.id]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Unregister detaches the exporter from the meter.
func (e *OTelExporter) Unregister() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
