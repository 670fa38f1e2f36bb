package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ─── Journal ────────────────────────────────────────────────────────────────

func TestJournal_BeginEnd_Records(t *testing.T) {
	j := NewJournal(DefaultJournalConfig())

	op := j.Begin("ledger.sale", map[string]string{"product": "4"})
	j.End(op, nil)

	if j.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", j.Len())
	}
	got := j.Recent(1)[0]
	if got.Name != "ledger.sale" || got.Status != OpOK {
		t.Errorf("Recent()[0] = %+v", got)
	}
	if got.ID == "" {
		t.Error("ID should be set")
	}
	if got.Attrs["product"] != "4" {
		t.Errorf("Attrs[product] = %q, want 4", got.Attrs["product"])
	}
}

func TestJournal_End_Error(t *testing.T) {
	j := NewJournal(DefaultJournalConfig())
	op := j.Begin("ledger.sale", nil)
	j.End(op, errors.New("insufficient stock"))

	got := j.Recent(0)[0]
	if got.Status != OpError || got.Error != "insufficient stock" {
		t.Errorf("op = %+v, want error status", got)
	}
}

func TestJournal_RingBuffer(t *testing.T) {
	j := NewJournal(JournalConfig{Enabled: true, MaxOps: 3})
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		j.End(j.Begin(name, nil), nil)
	}
	if j.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", j.Len())
	}
	ops := j.Recent(2)
	if ops[0].Name != "d" || ops[1].Name != "e" {
		t.Errorf("Recent(2) = %s,%s; want d,e", ops[0].Name, ops[1].Name)
	}
	j.Reset()
	if j.Len() != 0 {
		t.Errorf("Len() after Reset = %d", j.Len())
	}
}

func TestJournal_Disabled(t *testing.T) {
	j := NewJournal(JournalConfig{Enabled: false})
	j.End(j.Begin("x", nil), nil)
	if j.Len() != 0 {
		t.Errorf("disabled journal recorded %d ops", j.Len())
	}
}

func TestJournal_Nil(t *testing.T) {
	var j *Journal
	j.End(j.Begin("x", nil), nil)
	if j.Len() != 0 || j.Recent(5) != nil {
		t.Error("nil journal should be inert")
	}
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestMetrics_Counters(t *testing.T) {
	before := testutil.ToFloat64(LedgerEffects.WithLabelValues("sale"))
	LedgerEffects.WithLabelValues("sale").Inc()
	if got := testutil.ToFloat64(LedgerEffects.WithLabelValues("sale")); got != before+1 {
		t.Errorf("LedgerEffects{sale} = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(Backups.WithLabelValues("error"))
	Backups.WithLabelValues(Outcome(errors.New("disk full"))).Inc()
	if got := testutil.ToFloat64(Backups.WithLabelValues("error")); got != before+1 {
		t.Errorf("Backups{error} = %v, want %v", got, before+1)
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "ok" {
		t.Error("Outcome(nil) should be ok")
	}
	if Outcome(errors.New("x")) != "error" {
		t.Error("Outcome(err) should be error")
	}
}
