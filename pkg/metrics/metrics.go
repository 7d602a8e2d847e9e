// Package metrics records slot operation metrics for the node-exporter
// textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/olimci/bootslot/pkg/slot"
)

// Metrics owns a registry so that a run writes only its own series.
type Metrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	slotPatched       *prometheus.GaugeVec
	backupFound       *prometheus.GaugeVec
	exportFound       *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bootslot_operations_total",
				Help: "Slot operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bootslot_operation_duration_seconds",
				Help:    "Slot operation duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"op"},
		),
		slotPatched: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bootslot_slot_patched",
				Help: "1 if the slot's boot image is patched, 0 if stock",
			},
			[]string{"slot"},
		),
		backupFound: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bootslot_backup_found",
				Help: "1 if a valid backup exists for the slot's image",
			},
			[]string{"slot"},
		),
		exportFound: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bootslot_export_found",
				Help: "1 if a valid export exists for the slot's image",
			},
			[]string{"slot"},
		),
	}
}

// Observe implements slot.Observer.
func (m *Metrics) Observe(op slot.Operation) {
	m.operationsTotal.WithLabelValues(op.Name, slot.Reason(op.Err)).Inc()
	m.operationDuration.WithLabelValues(op.Name).Observe(op.Duration.Seconds())
}

// SetRecord updates the per-slot gauges from a published record.
func (m *Metrics) SetRecord(rec slot.Record) {
	if rec.Classification == nil {
		return
	}
	m.slotPatched.WithLabelValues(rec.Slot).Set(boolValue(rec.Classification.Status == slot.Patched))
	m.backupFound.WithLabelValues(rec.Slot).Set(boolValue(rec.Backup == slot.BackupFound))
	m.exportFound.WithLabelValues(rec.Slot).Set(boolValue(rec.Export == slot.ExportFound))
}

// WriteTextfile writes all series to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
