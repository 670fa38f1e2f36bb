package daemon

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tally-books/tally/internal/app/ledger"
	"github.com/tally-books/tally/internal/domain"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Dir = dir
	cfg.Backup.Dir = filepath.Join(dir, "backups")
	cfg.Backup.Schedule = ""
	cfg.Log.Level = "error"
	return cfg
}

func TestNew_SeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	d, err := New(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	if !d.Seeded.User || !d.Seeded.Settings || d.Seeded.Currencies != 3 {
		t.Errorf("Seeded = %+v, want user, settings and 3 currencies", d.Seeded)
	}
	base, err := d.Currency.Base(ctx)
	if err != nil {
		t.Fatalf("Base() error: %v", err)
	}
	if base.Symbol != "USD" {
		t.Errorf("base = %q, want USD", base.Symbol)
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	d, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	usd, _ := d.Currency.Base(ctx)
	if _, err := d.Ledger.RecordExpense(ctx, ledger.ExpenseRequest{Amount: 7, CurrencyID: usd.ID}); err != nil {
		t.Fatalf("RecordExpense() error: %v", err)
	}
	d.Close()

	d, err = New(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer d.Close()
	if d.Seeded.User || d.Seeded.Currencies != 0 {
		t.Errorf("second start should not reseed, got %+v", d.Seeded)
	}
	txs, _ := d.Ledger.Transactions(ctx, domain.TxFilter{Type: domain.TxExpense})
	if len(txs) != 1 {
		t.Errorf("expenses after reopen = %d, want 1", len(txs))
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Port = 0
	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Serve(ctx); err != nil {
		t.Errorf("Serve() after cancel = %v, want nil", err)
	}
}

func TestServe_ShutdownEndsEventStream(t *testing.T) {
	d, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/events")
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first event line = %q, %v", line, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown blocked by open event stream")
	}
}
