package api

import (
	"net/http"
	"strconv"

	"github.com/tally-books/tally/internal/app/currency"
	"github.com/tally-books/tally/internal/domain"
)

// RatesAPI serves the exchange-rate table.
type RatesAPI struct {
	svc *currency.Service
}

// HandleList handles GET /api/rates.
func (h *RatesAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	rates, err := h.svc.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rates == nil {
		rates = []domain.Currency{}
	}
	writeJSON(w, http.StatusOK, rates)
}

// HandleUpsert handles POST /api/rates and PUT /api/rates/{id}.
func (h *RatesAPI) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var c domain.Currency
	if !decode(w, r, &c) {
		return
	}
	c.ID = id
	saved, err := h.svc.Upsert(r.Context(), c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

// HandleDelete handles DELETE /api/rates/{id}.
func (h *RatesAPI) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetBase handles POST /api/rates/{id}/base.
func (h *RatesAPI) HandleSetBase(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.SetBase(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	base, err := h.svc.Base(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, base)
}

type conversion struct {
	Amount float64 `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Result float64 `json:"result"`
}

// HandleConvert handles GET /api/convert?amount=&from=&to=.
func (h *RatesAPI) HandleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a number")
		return
	}
	from, to := q.Get("from"), q.Get("to")
	out, err := h.svc.ConvertSymbols(r.Context(), amount, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversion{Amount: amount, From: from, To: to, Result: out})
}
