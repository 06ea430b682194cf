package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pmdaparse/internal/extract"
	"github.com/dgallion1/pmdaparse/internal/store"
)

// handleGetMedicine returns every stored medicine with the product code.
func (s *Server) handleGetMedicine(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "record store disabled", http.StatusServiceUnavailable)
		return
	}
	code := chi.URLParam(r, "code")
	meds, err := s.store.FindByProductCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "medicine not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("find medicine", "product_code", code, "error", err)
		jsonError(w, "failed to load medicine", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"medicines": meds})
}

// handleSearch finds stored records containing q.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "record store disabled", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	cat := extract.Category(q.Get("category"))
	if cat != "" && !extract.ValidCategory(cat) {
		jsonError(w, "unknown category: "+string(cat), http.StatusBadRequest)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	hits, err := s.store.Search(r.Context(), query, cat, limit)
	if err != nil {
		s.log.Error("search records", "query", query, "error", err)
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []store.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}
