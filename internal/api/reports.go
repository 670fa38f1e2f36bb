package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/tally-books/tally/internal/app/backup"
	"github.com/tally-books/tally/internal/app/report"
	"github.com/tally-books/tally/internal/domain"
)

// ReportAPI serves reports and backups.
type ReportAPI struct {
	reports *report.Service
	backup  *backup.Service
}

// window reads ?from=YYYY-MM-DD&to=YYYY-MM-DD. Both days are inclusive.
func window(w http.ResponseWriter, r *http.Request) (report.Window, bool) {
	q := r.URL.Query()
	from, err := parseDay(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return report.Window{}, false
	}
	to, err := parseDay(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return report.Window{}, false
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	return report.Window{From: from, To: to}, true
}

// HandleAll handles GET /api/reports.
func (h *ReportAPI) HandleAll(w http.ResponseWriter, r *http.Request) {
	win, ok := window(w, r)
	if !ok {
		return
	}
	b, err := h.reports.All(r.Context(), win)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleGeneral handles GET /api/reports/general.
func (h *ReportAPI) HandleGeneral(w http.ResponseWriter, r *http.Request) {
	win, ok := window(w, r)
	if !ok {
		return
	}
	g, err := h.reports.General(r.Context(), win)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleCategories handles GET /api/reports/categories.
func (h *ReportAPI) HandleCategories(w http.ResponseWriter, r *http.Request) {
	win, ok := window(w, r)
	if !ok {
		return
	}
	lines, err := h.reports.ByCategory(r.Context(), win)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// HandleItems handles GET /api/reports/items.
func (h *ReportAPI) HandleItems(w http.ResponseWriter, r *http.Request) {
	win, ok := window(w, r)
	if !ok {
		return
	}
	lines, err := h.reports.ByItem(r.Context(), win)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// HandleXLSX handles GET /api/reports/xlsx.
func (h *ReportAPI) HandleXLSX(w http.ResponseWriter, r *http.Request) {
	win, ok := window(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.reports.WriteXLSX(r.Context(), win, &buf); err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", report.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="tally-report.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// ─── Backup ─────────────────────────────────────────────────────────────────

// HandleExport handles GET /api/backup/export.
func (h *ReportAPI) HandleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.backup.Export(r.Context(), &buf); err != nil {
		writeDomainError(w, err)
		return
	}
	name := "tally-export-" + time.Now().UTC().Format("20060102") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// HandleImport handles POST /api/backup/import?replace=true.
func (h *ReportAPI) HandleImport(w http.ResponseWriter, r *http.Request) {
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	stats, err := h.backup.Import(r.Context(), r.Body, replace)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleRunBackup handles POST /api/backup.
func (h *ReportAPI) HandleRunBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.backup.Run(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// HandleListBackups handles GET /api/backup.
func (h *ReportAPI) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	files, err := h.backup.List()
	if err != nil {
		writeDomainError(w, domain.Storage("list backups", err))
		return
	}
	if files == nil {
		files = []backup.File{}
	}
	writeJSON(w, http.StatusOK, files)
}
