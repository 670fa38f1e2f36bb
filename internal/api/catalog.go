package api

import (
	"net/http"

	"github.com/tally-books/tally/internal/app/catalog"
	"github.com/tally-books/tally/internal/domain"
)

// CatalogAPI serves categories, products and parties.
type CatalogAPI struct {
	svc *catalog.Service
}

type nameBody struct {
	Name string `json:"name"`
}

// HandleListCategories handles GET /api/categories.
func (h *CatalogAPI) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// HandleCreateCategory handles POST /api/categories.
func (h *CatalogAPI) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body nameBody
	if !decode(w, r, &body) {
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), body.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleRenameCategory handles PUT /api/categories/{id}.
func (h *CatalogAPI) HandleRenameCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body nameBody
	if !decode(w, r, &body) {
		return
	}
	if err := h.svc.RenameCategory(r.Context(), id, body.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Category{ID: id, Name: body.Name})
}

// HandleDeleteCategory handles DELETE /api/categories/{id}.
func (h *CatalogAPI) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Products ───────────────────────────────────────────────────────────────

// HandleListProducts handles GET /api/products?q=&stock=low|out. Each
// product carries its stock status and prices in every currency.
func (h *CatalogAPI) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	listings, err := h.svc.Listings(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if status := domain.StockStatus(r.URL.Query().Get("stock")); status != "" {
		kept := listings[:0]
		for _, l := range listings {
			if l.StockStatus == status {
				kept = append(kept, l)
			}
		}
		listings = kept
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleProductPrices handles GET /api/products/{id}/prices.
func (h *CatalogAPI) HandleProductPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	prices, err := h.svc.Prices(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// HandleGetProduct handles GET /api/products/{id}.
func (h *CatalogAPI) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Product(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSaveProduct handles POST /api/products and PUT /api/products/{id}.
func (h *CatalogAPI) HandleSaveProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = id
	saved, err := h.svc.SaveProduct(r.Context(), p)
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

// HandleDeleteProduct handles DELETE /api/products/{id}.
func (h *CatalogAPI) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Parties ────────────────────────────────────────────────────────────────

// HandleListParties handles GET /api/parties?type=debtor|creditor.
func (h *CatalogAPI) HandleListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.svc.Parties(r.Context(), domain.PartyType(r.URL.Query().Get("type")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if parties == nil {
		parties = []domain.Party{}
	}
	writeJSON(w, http.StatusOK, parties)
}

// HandleGetParty handles GET /api/parties/{id}.
func (h *CatalogAPI) HandleGetParty(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Party(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSaveParty handles POST /api/parties and PUT /api/parties/{id}.
func (h *CatalogAPI) HandleSaveParty(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p domain.Party
	if !decode(w, r, &p) {
		return
	}
	p.ID = id
	saved, err := h.svc.SaveParty(r.Context(), p)
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

// HandleDeleteParty handles DELETE /api/parties/{id}.
func (h *CatalogAPI) HandleDeleteParty(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteParty(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatement handles GET /api/parties/{id}/statement.
func (h *CatalogAPI) HandleStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	st, err := h.svc.PartyStatement(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if st.Transactions == nil {
		st.Transactions = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, st)
}
