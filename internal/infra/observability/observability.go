// Package observability holds tally's Prometheus metrics and the in-memory
// operation journal that backs the /api/ops debug view.
package observability

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Operation Journal
// ═══════════════════════════════════════════════════════════════════════════

// OpStatus tells whether an operation succeeded.
type OpStatus string

const (
	OpOK    OpStatus = "ok"
	OpError OpStatus = "error"
)

// Op is one timed engine operation (a ledger effect, a rate update, a
// report run).
type Op struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Start    time.Time         `json:"start"`
	Duration time.Duration     `json:"duration"`
	Status   OpStatus          `json:"status"`
	Error    string            `json:"error,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// JournalConfig configures the journal.
type JournalConfig struct {
	Enabled bool
	MaxOps  int // ring buffer size
}

// DefaultJournalConfig returns defaults.
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{Enabled: true, MaxOps: 1_000}
}

// Journal keeps the most recent operations in a ring buffer.
type Journal struct {
	mu      sync.Mutex
	ops     []Op
	maxOps  int
	enabled bool
}

// NewJournal creates a journal. A nil *Journal is valid and records nothing.
func NewJournal(cfg JournalConfig) *Journal {
	if cfg.MaxOps <= 0 {
		cfg.MaxOps = DefaultJournalConfig().MaxOps
	}
	return &Journal{
		ops:     make([]Op, 0, cfg.MaxOps),
		maxOps:  cfg.MaxOps,
		enabled: cfg.Enabled,
	}
}

// Begin starts timing an operation. Pass the result to End.
func (j *Journal) Begin(name string, attrs map[string]string) *Op {
	return &Op{ID: uuid.NewString(), Name: name, Start: time.Now(), Status: OpOK, Attrs: attrs}
}

// End stamps the duration and outcome and records op.
func (j *Journal) End(op *Op, err error) {
	if j == nil || !j.enabled || op == nil {
		return
	}
	op.Duration = time.Since(op.Start)
	if err != nil {
		op.Status = OpError
		op.Error = err.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.ops) >= j.maxOps {
		j.ops = j.ops[1:]
	}
	j.ops = append(j.ops, *op)
}

// Recent returns up to limit of the newest operations, oldest first.
func (j *Journal) Recent(limit int) []Op {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 || limit > len(j.ops) {
		limit = len(j.ops)
	}
	out := make([]Op, limit)
	copy(out, j.ops[len(j.ops)-limit:])
	return out
}

// Len returns the number of recorded operations.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.ops)
}

// Reset clears the journal.
func (j *Journal) Reset() {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = j.ops[:0]
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Ledger ─────────────────────────────────────────────────────────────────

// LedgerEffects counts committed ledger effects by transaction type.
var LedgerEffects = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tally",
	Subsystem: "ledger",
	Name:      "effects_total",
	Help:      "Committed ledger effects by transaction type",
}, []string{"type"})

// LedgerReversals counts deleted transactions by type.
var LedgerReversals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tally",
	Subsystem: "ledger",
	Name:      "reversals_total",
	Help:      "Deleted transactions by type",
}, []string{"type"})

// LedgerRejections counts refused operations by error class.
var LedgerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tally",
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Refused ledger operations by error class",
}, []string{"class"})

// HubDropped counts commit events dropped for slow subscribers.
var HubDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tally",
	Subsystem: "ledger",
	Name:      "hub_dropped_total",
	Help:      "Commit notifications dropped because a subscriber was full",
})

// ─── Currency ───────────────────────────────────────────────────────────────

// RateUpdates counts currency writes; linked=true for writes made by the
// legacy pair linker.
var RateUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tally",
	Subsystem: "currency",
	Name:      "rate_updates_total",
	Help:      "Exchange rate writes",
}, []string{"linked"})

// ─── Reports ────────────────────────────────────────────────────────────────

// ReportDuration observes report computation time by report kind.
var ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tally",
	Subsystem: "report",
	Name:      "duration_seconds",
	Help:      "Report computation latency",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
}, []string{"kind"})

// ─── Backups ────────────────────────────────────────────────────────────────

// Backups counts backup runs by outcome (ok, error).
var Backups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tally",
	Subsystem: "backup",
	Name:      "runs_total",
	Help:      "Backup runs by outcome",
}, []string{"outcome"})

// BackupRecords reports how many records the last backup wrote.
var BackupRecords = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tally",
	Subsystem: "backup",
	Name:      "last_records",
	Help:      "Records written by the most recent backup",
})

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
