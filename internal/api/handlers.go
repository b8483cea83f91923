package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"house-prices/internal/address"
	"house-prices/internal/models"
	"house-prices/internal/scraper"
	"house-prices/internal/sites"
)

// Lookuper runs an address through the configured sites
type Lookuper interface {
	Lookup(ctx context.Context, raw string) (*models.Report, error)
	Sites() []string
}

// CacheAdmin exposes resolved-URL cache maintenance
type CacheAdmin interface {
	Entries() []models.ResolvedEntry
	Invalidate(ctx context.Context, site, addressKey string) error
	TTL() time.Duration
}

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	lookup Lookuper
	cache  CacheAdmin
}

// NewHandlers creates a new Handlers instance
func NewHandlers(l Lookuper, c CacheAdmin) *Handlers {
	return &Handlers{lookup: l, cache: c}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// GetEstimates handles GET /api/estimates?address=
func (h *Handlers) GetEstimates(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("address")
	if raw == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}

	report, err := h.lookup.Lookup(r.Context(), raw)
	if errors.Is(err, scraper.ErrEmptyAddress) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report": report,
		"rows":   report.Rows(),
	})
}

// ListSites handles GET /api/sites
func (h *Handlers) ListSites(w http.ResponseWriter, r *http.Request) {
	names := h.lookup.Sites()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sites":     names,
		"supported": sites.Names(),
		"count":     len(names),
	})
}

// ListCache handles GET /api/cache
func (h *Handlers) ListCache(w http.ResponseWriter, r *http.Request) {
	entries := h.cache.Entries()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"ttl":     h.cache.TTL().String(),
	})
}

// InvalidateCache handles DELETE /api/cache/{site}?address=
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	if !sites.Known(site) {
		http.Error(w, "unknown site", http.StatusNotFound)
		return
	}
	key := address.New(r.URL.Query().Get("address")).Key()
	if key == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}

	if err := h.cache.Invalidate(r.Context(), site, key); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}
