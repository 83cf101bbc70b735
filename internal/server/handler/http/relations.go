package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
	"github.com/atinyakov/GuardPine/internal/service"
)

// RelationService is the relation resource plus the detailed listing.
type RelationService interface {
	ResourceService[models.RelationView, models.Relation, service.NewRelation, service.RelationPatch]
	ListVerbose(ctx context.Context, caller, owner string) ([]models.RelativeView, error)
}

// RelationHandler serves /relationship. GET accepts ?verbose=true to bundle
// each relative's favorites and activities.
type RelationHandler struct {
	*ResourceHandler[models.RelationView, models.Relation, service.NewRelation, service.RelationPatch]
	Relations RelationService
}

// NewRelationHandler returns a RelationHandler over s.
func NewRelationHandler(s RelationService) *RelationHandler {
	return &RelationHandler{
		ResourceHandler: &ResourceHandler[models.RelationView, models.Relation, service.NewRelation, service.RelationPatch]{Service: s},
		Relations:       s,
	}
}

// List handles GET with optional ?user_id= and ?verbose=.
func (h *RelationHandler) List(w http.ResponseWriter, r *http.Request) {
	verbose := false
	if raw := r.URL.Query().Get("verbose"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(w, r, fmt.Errorf("%w: verbose must be a boolean", common.ErrMalformed))
			return
		}
		verbose = v
	}
	if !verbose {
		h.ResourceHandler.List(w, r)
		return
	}
	items, err := h.Relations.ListVerbose(r.Context(), caller(r), r.URL.Query().Get("user_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Mount registers the relation verbs on path.
func (h *RelationHandler) Mount(r chi.Router, path string) {
	r.Get(path, h.List)
	r.Put(path, h.Create)
	r.Post(path, h.Create)
	r.Patch(path, h.Update)
	r.Delete(path, h.Delete)
}
