package http

import (
	"context"
	"fmt"
	"net/http"
)

// PermissionService defines the permission graph operations required by
// PermissionHandler.
type PermissionService interface {
	Grant(ctx context.Context, grantor, grantee string) (bool, error)
	Revoke(ctx context.Context, grantor, grantee string) error
	PermissionsOf(ctx context.Context, user string) ([]string, error)
	GrantedTo(ctx context.Context, user string) ([]string, error)
}

// PermissionHandler lets the caller decide who may act on its behalf.
type PermissionHandler struct {
	Permissions PermissionService
}

// List handles GET /permission: the users who may act as the caller,
// the caller included.
func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Permissions.PermissionsOf(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// Granted handles GET /permission/granted: the users the caller may act as.
func (h *PermissionHandler) Granted(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Permissions.GrantedTo(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// Grant handles PUT /permission?from_user_id=. The named user may then act
// as the caller. Granting twice is not an error.
func (h *PermissionHandler) Grant(w http.ResponseWriter, r *http.Request) {
	grantee := r.URL.Query().Get("from_user_id")
	me := caller(r)
	added, err := h.Permissions.Grant(r.Context(), me, grantee)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !added {
		fmt.Fprintf(w, "%s already in %s's permission list", grantee, me)
		return
	}
	fmt.Fprintf(w, "add %s to %s's permission list successfully", grantee, me)
}

// Revoke handles DELETE /permission?from_user_id=.
func (h *PermissionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	grantee := r.URL.Query().Get("from_user_id")
	me := caller(r)
	if err := h.Permissions.Revoke(r.Context(), me, grantee); err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "remove %s from %s's permission list successfully", grantee, me)
}
