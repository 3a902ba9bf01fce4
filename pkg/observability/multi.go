package observability

import (
	"time"

	"scribe/application/ports"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"
)

// Fanout sends every measurement to each sink.
type Fanout []ports.Metrics

var _ ports.Metrics = Fanout(nil)

func (f Fanout) RecordConsume(kind valueobjects.UsageKind, decision ledger.Decision) {
	for _, m := range f {
		m.RecordConsume(kind, decision)
	}
}

func (f Fanout) RecordAnalysis(status string, took time.Duration) {
	for _, m := range f {
		m.RecordAnalysis(status, took)
	}
}

func (f Fanout) RecordExport(format valueobjects.ExportFormat, status valueobjects.ExportStatus, took time.Duration) {
	for _, m := range f {
		m.RecordExport(format, status, took)
	}
}

// Nop discards measurements.
type Nop struct{}

var _ ports.Metrics = Nop{}

func (Nop) RecordConsume(valueobjects.UsageKind, ledger.Decision)                          {}
func (Nop) RecordAnalysis(string, time.Duration)                                           {}
func (Nop) RecordExport(valueobjects.ExportFormat, valueobjects.ExportStatus, time.Duration) {}
