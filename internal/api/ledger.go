package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/app/ledger"
	"github.com/tally-books/tally/internal/domain"
)

// LedgerAPI serves ledger writes, transaction queries and the commit feed.
type LedgerAPI struct {
	engine *ledger.Engine
	log    *zap.Logger
}

// HandleSale handles POST /api/sales.
func (h *LedgerAPI) HandleSale(w http.ResponseWriter, r *http.Request) {
	var req ledger.SaleRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, func() (domain.Transaction, error) { return h.engine.RecordSale(r.Context(), req) })
}

// HandlePurchase handles POST /api/purchases.
func (h *LedgerAPI) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	var req ledger.PurchaseRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, func() (domain.Transaction, error) { return h.engine.RecordPurchase(r.Context(), req) })
}

// HandleExpense handles POST /api/expenses.
func (h *LedgerAPI) HandleExpense(w http.ResponseWriter, r *http.Request) {
	var req ledger.ExpenseRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, func() (domain.Transaction, error) { return h.engine.RecordExpense(r.Context(), req) })
}

// HandlePayment handles POST /api/parties/{id}/payments.
func (h *LedgerAPI) HandlePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req ledger.PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	req.PartyID = id
	h.respond(w, func() (domain.Transaction, error) { return h.engine.RecordPayment(r.Context(), req) })
}

func (h *LedgerAPI) respond(w http.ResponseWriter, record func() (domain.Transaction, error)) {
	t, err := record()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleList handles GET /api/transactions?type=&date=&party=&product=.
func (h *LedgerAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.TxFilter{Type: domain.TxType(q.Get("type")), DatePrefix: q.Get("date")}
	var err error
	if f.PartyID, err = queryInt64(r, "party"); err != nil {
		writeError(w, http.StatusBadRequest, "party must be an id")
		return
	}
	if f.ProductID, err = queryInt64(r, "product"); err != nil {
		writeError(w, http.StatusBadRequest, "product must be an id")
		return
	}
	txs, err := h.engine.Transactions(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// HandleGet handles GET /api/transactions/{id}.
func (h *LedgerAPI) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := h.engine.Transaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleDelete handles DELETE /api/transactions/{id}. The response carries
// the removed transaction.
func (h *LedgerAPI) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := h.engine.DeleteTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleEvents handles GET /api/events as a Server-Sent Events stream of
// ledger commits.
func (h *LedgerAPI) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	commits, cancel := h.engine.Hub().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case c, open := <-commits:
			if !open {
				return
			}
			data, err := json.Marshal(c)
			if err != nil {
				h.log.Warn("encode commit", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.Kind, data)
			flusher.Flush()
		}
	}
}
