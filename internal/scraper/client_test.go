package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/GuardPine/internal/common"
)

type failureCounter map[string]int

func (f failureCounter) UpstreamFailed(upstream string) { f[upstream]++ }

func newTestClient(t *testing.T, handler http.Handler) (*Client, failureCounter) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	failures := failureCounter{}
	c, err := NewClient(Config{BaseURL: srv.URL + "/", SearchURL: srv.URL + "/cse/search?s=1", Contact: "ops@example.com"},
		srv.Client(), failures, zap.NewNop())
	require.NoError(t, err)
	return c, failures
}

func TestClient_Article(t *testing.T) {
	var agent, contact string
	c, failures := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent, contact = r.UserAgent(), r.Header.Get("X-Scraper-Contact")
		switch r.URL.Path {
		case "/article/7.html":
			_, _ = w.Write([]byte(articleHTML))
		case "/article_1":
			_, _ = w.Write([]byte(articleListHTML))
		default:
			http.NotFound(w, r)
		}
	}))

	d, err := c.Article(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "护理院收费标准", d.Title)
	assert.Equal(t, userAgent, agent)
	assert.Equal(t, "ops@example.com", contact)

	list, err := c.Articles(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = c.Article(context.Background(), 8)
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
	assert.Empty(t, failures, "a missing page is not an upstream failure")

	_, err = c.Articles(context.Background(), 0)
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
}

func TestClient_UpstreamFailure(t *testing.T) {
	c, failures := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Cities(context.Background())
	assert.True(t, errors.Is(err, common.ErrUpstream), "got %v", err)
	assert.Equal(t, 1, failures[upstreamName])
}

func TestClient_Search(t *testing.T) {
	var query, page string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query, page = r.URL.Query().Get("q"), r.URL.Query().Get("page")
		_, _ = w.Write([]byte(searchHTML))
	}))

	res, err := c.Search(context.Background(), "护理", 2)
	require.NoError(t, err)
	assert.Equal(t, "护理", query)
	assert.Equal(t, "2", page)
	assert.Contains(t, res.RawURL, "s=1")
	assert.Equal(t, 2, res.Count)
}

func TestClient_Download(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))

	p, err := c.Download(context.Background(), c.base.String()+"img")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, "image/png", p.Header.Get("Content-Type"))
	assert.Empty(t, p.Header.Get("Content-Length"))
	assert.Equal(t, []byte("png"), p.Body)

	for _, bad := range []string{"file:///etc/passwd", "/relative", "gopher://x"} {
		_, err := c.Download(context.Background(), bad)
		assert.True(t, errors.Is(err, common.ErrValidation), "%s: got %v", bad, err)
	}
}
