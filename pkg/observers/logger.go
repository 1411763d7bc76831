package observers

import (
	"log/slog"

	"github.com/andrisyah/vokalis/pkg/metrics"
)

// LoggerObserver mirrors metrics events into the structured log at debug
// level, mostly useful when chasing a misbehaving pipeline locally.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	args := make([]any, 0, 2*(2+len(ev.Tags)+len(ev.Fields)))
	args = append(args, "name", ev.Name)
	if ev.Value != 0 {
		args = append(args, "value", ev.Value)
	}
	for k, v := range ev.Tags {
		args = append(args, k, v)
	}
	for k, v := range ev.Fields {
		args = append(args, k, v)
	}
	o.log.Debug("metric", args...)
}

// MultiObserver fans one event out to several observers. Nil entries are
// dropped at construction.
type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	kept := make([]metrics.Observer, 0, len(list))
	for _, obs := range list {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	return &MultiObserver{list: kept}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		obs.RecordEvent(ev)
	}
}
