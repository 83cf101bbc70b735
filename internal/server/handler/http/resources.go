package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ResourceService is the shape shared by the owned resources: L is a listed
// item, R a stored row, N a creation payload and P an update payload.
type ResourceService[L, R, N, P any] interface {
	List(ctx context.Context, caller, owner string) ([]L, error)
	Create(ctx context.Context, caller string, in N) (*R, error)
	Update(ctx context.Context, caller string, patch P) (*R, error)
	Delete(ctx context.Context, caller string, id int64) error
}

// ResourceHandler serves one owned resource. Every operation acts as the
// caller; the owner is taken from ?user_id= or the payload and must have
// granted the caller its authority.
type ResourceHandler[L, R, N, P any] struct {
	Service ResourceService[L, R, N, P]
}

// List handles GET with an optional ?user_id=.
func (h *ResourceHandler[L, R, N, P]) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context(), caller(r), r.URL.Query().Get("user_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if items == nil {
		items = []L{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Create handles PUT and POST with a JSON creation payload.
func (h *ResourceHandler[L, R, N, P]) Create(w http.ResponseWriter, r *http.Request) {
	var in N
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	row, err := h.Service.Create(r.Context(), caller(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// Update handles PATCH with a JSON update payload carrying the id.
func (h *ResourceHandler[L, R, N, P]) Update(w http.ResponseWriter, r *http.Request) {
	var patch P
	if err := decode(r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	row, err := h.Service.Update(r.Context(), caller(r), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Delete handles DELETE ?id=.
func (h *ResourceHandler[L, R, N, P]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), caller(r), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Mount registers the handler's verbs on path.
func (h *ResourceHandler[L, R, N, P]) Mount(r chi.Router, path string) {
	r.Get(path, h.List)
	r.Put(path, h.Create)
	r.Post(path, h.Create)
	r.Patch(path, h.Update)
	r.Delete(path, h.Delete)
}
