package http

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/juju/clock"

	"github.com/atinyakov/GuardPine/internal/cache"
	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
	"github.com/atinyakov/GuardPine/internal/scraper"
)

//go:embed names.txt
var namesFile string

var homeNames = strings.Fields(namesFile)

const (
	maxHomeCards   = 50
	homeImagePath  = "/image/home"
	homeLocation   = "金凤路18号"
	imageCacheSize = 16
)

// Downloader buffers a remote resource.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (*scraper.Payload, error)
}

// PageCounter counts landing page views.
type PageCounter interface {
	ViewPage() int64
}

// HomeHandler serves the landing screen: teaser cards, their image and the
// page view counter.
type HomeHandler struct {
	imageURL string
	images   *cache.TTL[string, *scraper.Payload]
	fetcher  Downloader
	views    PageCounter
	rand     func(n int) int
}

// NewHomeHandler constructs a HomeHandler. The card image at imageURL is
// kept for imageTTL.
func NewHomeHandler(fetcher Downloader, views PageCounter, imageURL string, imageTTL time.Duration, clk clock.Clock) *HomeHandler {
	return &HomeHandler{
		imageURL: imageURL,
		images:   cache.New[string, *scraper.Payload](imageTTL, imageCacheSize, clk),
		fetcher:  fetcher,
		views:    views,
		rand:     rand.Intn,
	}
}

// Root handles GET / by counting the view.
func (h *HomeHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"count": h.views.ViewPage()})
}

// Cards handles GET /home/{n} with n random cards.
func (h *HomeHandler) Cards(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > maxHomeCards {
		fail(w, r, fmt.Errorf("%w: n must be between 1 and %d", common.ErrValidation, maxHomeCards))
		return
	}
	cards := make([]models.HomeCard, 0, n)
	for i := 0; i < n; i++ {
		cards = append(cards, models.HomeCard{
			ID:          i,
			Name:        homeNames[h.rand(len(homeNames))],
			ImageURL:    homeImagePath,
			Location:    homeLocation,
			ViewCount:   100 + h.rand(99_900),
			SearchCount: 100 + h.rand(99_900),
		})
	}
	writeJSON(w, http.StatusOK, cards)
}

// Image handles GET /image/home. Successful responses are cached.
func (h *HomeHandler) Image(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.images.Get(h.imageURL); ok {
		writePayload(w, p)
		return
	}
	p, err := h.fetcher.Download(r.Context(), h.imageURL)
	if err != nil {
		fail(w, r, err)
		return
	}
	if p.Status == http.StatusOK {
		h.images.Set(h.imageURL, p)
	}
	writePayload(w, p)
}
