// Package api provides the HTTP surface of tally: a JSON REST API over the
// catalog, currency table, ledger, reports and backups, a Server-Sent
// Events feed of ledger commits, and the Prometheus /metrics endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/app/backup"
	"github.com/tally-books/tally/internal/app/catalog"
	"github.com/tally-books/tally/internal/app/currency"
	"github.com/tally-books/tally/internal/app/ledger"
	"github.com/tally-books/tally/internal/app/report"
	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/observability"
)

// Version is reported by /api/version.
var Version = "0.1.0"

// Services is everything the API serves.
type Services struct {
	Catalog  *catalog.Service
	Currency *currency.Service
	Ledger   *ledger.Engine
	Reports  *report.Service
	Backup   *backup.Service
	Journal  *observability.Journal
}

// Server is the tally HTTP API server.
type Server struct {
	svc            Services
	log            *zap.Logger
	metricsEnabled bool
}

// NewServer creates a new API server. log may be nil.
func NewServer(svc Services, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	cat := &CatalogAPI{svc: s.svc.Catalog}
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", cat.HandleListCategories)
		r.Post("/", cat.HandleCreateCategory)
		r.Put("/{id}", cat.HandleRenameCategory)
		r.Delete("/{id}", cat.HandleDeleteCategory)
	})
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", cat.HandleListProducts)
		r.Post("/", cat.HandleSaveProduct)
		r.Get("/{id}", cat.HandleGetProduct)
		r.Get("/{id}/prices", cat.HandleProductPrices)
		r.Put("/{id}", cat.HandleSaveProduct)
		r.Delete("/{id}", cat.HandleDeleteProduct)
	})

	led := &LedgerAPI{engine: s.svc.Ledger, log: s.log}
	r.Route("/api/parties", func(r chi.Router) {
		r.Get("/", cat.HandleListParties)
		r.Post("/", cat.HandleSaveParty)
		r.Get("/{id}", cat.HandleGetParty)
		r.Put("/{id}", cat.HandleSaveParty)
		r.Delete("/{id}", cat.HandleDeleteParty)
		r.Get("/{id}/statement", cat.HandleStatement)
		r.Post("/{id}/payments", led.HandlePayment)
	})

	rates := &RatesAPI{svc: s.svc.Currency}
	r.Route("/api/rates", func(r chi.Router) {
		r.Get("/", rates.HandleList)
		r.Post("/", rates.HandleUpsert)
		r.Put("/{id}", rates.HandleUpsert)
		r.Delete("/{id}", rates.HandleDelete)
		r.Post("/{id}/base", rates.HandleSetBase)
	})
	r.Get("/api/convert", rates.HandleConvert)

	r.Post("/api/sales", led.HandleSale)
	r.Post("/api/purchases", led.HandlePurchase)
	r.Post("/api/expenses", led.HandleExpense)
	r.Route("/api/transactions", func(r chi.Router) {
		r.Get("/", led.HandleList)
		r.Get("/{id}", led.HandleGet)
		r.Delete("/{id}", led.HandleDelete)
	})
	r.Get("/api/events", led.HandleEvents)

	rep := &ReportAPI{reports: s.svc.Reports, backup: s.svc.Backup}
	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", rep.HandleAll)
		r.Get("/general", rep.HandleGeneral)
		r.Get("/categories", rep.HandleCategories)
		r.Get("/items", rep.HandleItems)
		r.Get("/xlsx", rep.HandleXLSX)
	})
	r.Route("/api/backup", func(r chi.Router) {
		r.Get("/", rep.HandleListBackups)
		r.Post("/", rep.HandleRunBackup)
		r.Get("/export", rep.HandleExport)
		r.Post("/import", rep.HandleImport)
	})

	r.Get("/api/ops", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		ops := s.svc.Journal.Recent(limit)
		if ops == nil {
			ops = []observability.Op{}
		}
		writeJSON(w, http.StatusOK, ops)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    http.StatusText(status),
		},
	})
}

// writeDomainError maps err onto its HTTP status and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{
		"error": map[string]any{
			"message": err.Error(),
			"type":    domain.Class(err),
		},
	})
}

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrReferential):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// idParam parses the {id} URL parameter. A missing parameter yields 0.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// parseDay parses a YYYY-MM-DD query value.
func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, raw)
}

// corsMiddleware adds CORS headers for local front ends.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
