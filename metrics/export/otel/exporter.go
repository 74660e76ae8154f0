package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/statelessauth"
	"github.com/MrEthical07/statelessauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no Meter is supplied.
	ErrNilMeter = errors.New("otel export: meter is nil")
	// ErrNilSource is returned for a nil Engine or source.
	ErrNilSource = errors.New("otel export: metrics source is nil")
)

// Source is what the exporter reads on each collection. *statelessauth.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() statelessauth.MetricsSnapshot
	AuditDropped() uint64
}

// latencyGauges holds the instruments of one engine histogram: one
// cumulative gauge per bound, +Inf last, and the sample count.
type latencyGauges struct {
	id    statelessauth.MetricID
	le    []metric.Int64ObservableGauge
	count metric.Int64ObservableGauge
}

// Exporter publishes Engine counters as observable counters and latency
// histograms as <name>_bucket_le_<bound> gauges. Values are read from the
// source only when the SDK collects.
type Exporter struct {
	src     Source
	reg     metric.Registration
	counter map[statelessauth.MetricID]metric.Int64ObservableCounter
	latency []latencyGauges
	dropped metric.Int64ObservableCounter
}

// NewExporter is NewExporterFromSource for an Engine.
func NewExporter(meter metric.Meter, engine *statelessauth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource creates the instruments on meter and registers one
// callback that observes them all.
func NewExporterFromSource(meter metric.Meter, src Source) (*Exporter, error) {
	switch {
	case meter == nil:
		return nil, ErrNilMeter
	case src == nil:
		return nil, ErrNilSource
	}

	e := &Exporter{
		src:     src,
		counter: make(map[statelessauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var all []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel export: counter %q: %w", def.Name, err)
		}
		e.counter[def.ID] = c
		all = append(all, c)
	}

	gauge := func(name, help string) (metric.Int64ObservableGauge, error) {
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("otel export: gauge %q: %w", name, err)
		}
		all = append(all, g)
		return g, nil
	}

	for _, def := range internaldefs.HistogramDefs {
		lg := latencyGauges{id: def.ID}
		for _, suffix := range internaldefs.HistogramBoundSuffix {
			g, err := gauge(def.Name+"_bucket_le_"+suffix, def.Help+" Cumulative bucket.")
			if err != nil {
				return nil, err
			}
			lg.le = append(lg.le, g)
		}
		count, err := gauge(def.Name+"_count", def.Help+" Sample count.")
		if err != nil {
			return nil, err
		}
		lg.count = count
		e.latency = append(e.latency, lg)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events discarded because the dispatcher buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("otel export: counter %q: %w", internaldefs.AuditDroppedName, err)
	}
	e.dropped = dropped
	all = append(all, dropped)

	reg, err := meter.RegisterCallback(e.observe, all...)
	if err != nil {
		return nil, fmt.Errorf("otel export: register callback: %w", err)
	}
	e.reg = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.src.MetricsSnapshot()

	for id, c := range e.counter {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}

	// Histograms are absent from the snapshot when latency recording is off.
	for _, lg := range e.latency {
		raw, ok := snap.Histograms[lg.id]
		if !ok {
			continue
		}
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, g := range lg.le {
			o.ObserveInt64(g, int64(cum[i]))
		}
		o.ObserveInt64(lg.count, int64(cum[len(cum)-1]))
	}

	o.ObserveInt64(e.dropped, int64(e.src.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay on the meter but
// report nothing afterwards.
func (e *Exporter) Close() error {
	if e == nil || e.reg == nil {
		return nil
	}
	return e.reg.Unregister()
}
