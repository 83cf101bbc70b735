package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
	"github.com/atinyakov/GuardPine/internal/scraper"
)

// Scraper defines the directory site reads required by InfoHandler.
type Scraper interface {
	Articles(ctx context.Context, page int) ([]models.ArticleWithDate, error)
	Article(ctx context.Context, articleID int64) (*models.ArticleDetails, error)
	Resthomes(ctx context.Context, region string, page int) (*models.ResthomesPage, error)
	Resthome(ctx context.Context, resthomeID int64) (*models.ResthomeDetails, error)
	Cities(ctx context.Context) (map[string][]models.Region, error)
	Search(ctx context.Context, query string, page int) (*models.SearchResults, error)
	PageMeta(ctx context.Context, rawURL string) (*models.PageMeta, error)
	Download(ctx context.Context, rawURL string) (*scraper.Payload, error)
}

// InfoHandler serves news and the resthome directory.
type InfoHandler struct {
	Scraper Scraper
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrMalformed, name)
	}
	return id, nil
}

// Articles handles GET /articles?page=, page starting at 1.
func (h *InfoHandler) Articles(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		fail(w, r, err)
		return
	}
	articles, err := h.Scraper.Articles(r.Context(), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

// Article handles GET /article/{articleId}.
func (h *InfoHandler) Article(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "articleId")
	if err != nil {
		fail(w, r, err)
		return
	}
	details, err := h.Scraper.Article(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// Resthomes handles GET /resthomes?region=&page=.
func (h *InfoHandler) Resthomes(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Scraper.Resthomes(r.Context(), r.URL.Query().Get("region"), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Resthome handles GET /resthome/{resthomeId}.
func (h *InfoHandler) Resthome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "resthomeId")
	if err != nil {
		fail(w, r, err)
		return
	}
	details, err := h.Scraper.Resthome(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// Cities handles GET /cities.
func (h *InfoHandler) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.Scraper.Cities(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

// Search handles GET /search?query=&page=, page starting at 0.
func (h *InfoHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Scraper.Search(r.Context(), r.URL.Query().Get("query"), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Parse handles GET /parse?url=. Deprecated: kept for old clients.
func (h *InfoHandler) Parse(w http.ResponseWriter, r *http.Request) {
	meta, err := h.Scraper.PageMeta(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// Proxy handles GET /proxy?url= by relaying an http(s) resource.
func (h *InfoHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	p, err := h.Scraper.Download(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writePayload(w, p)
}

// hopHeaders are connection scoped and never relayed.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Set-Cookie",
}

func writePayload(w http.ResponseWriter, p *scraper.Payload) {
	for k, vs := range p.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, k := range hopHeaders {
		w.Header().Del(k)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Body)))
	w.WriteHeader(p.Status)
	_, _ = w.Write(p.Body)
}
