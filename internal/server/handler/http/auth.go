package http

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/GuardPine/internal/auth"
	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
	"github.com/atinyakov/GuardPine/internal/service"
)

// IdentityService defines the account operations required by UserHandler.
type IdentityService interface {
	Exists(ctx context.Context, id string) (bool, error)
	Register(ctx context.Context, id, password string) error
	Login(ctx context.Context, id, password string) (*service.LoginResult, error)
	ResetPassword(ctx context.Context, id, oldPassword, newPassword string) error
	Erase(ctx context.Context, id string) error
	GetMeta(ctx context.Context, id, key string) (*string, error)
	SetMeta(ctx context.Context, id, key, value string) error
	Profile(ctx context.Context, id string) (*models.Profile, error)
	Location(ctx context.Context, id string) ([2]float64, error)
	SetLocation(ctx context.Context, id string, loc [2]float64) error
}

// Authorizer decides whether caller may act as owner.
type Authorizer interface {
	EnsurePermitted(ctx context.Context, caller, owner string) error
}

// UserHandler handles account registration, login and profile requests.
type UserHandler struct {
	// Identity performs the underlying account operations.
	Identity IdentityService
	// Permissions guards reading another user's location.
	Permissions Authorizer
	// SecureCookie marks the token cookie Secure (set when serving HTTPS).
	SecureCookie bool
}

// Credentials is the payload of registration and password login.
type Credentials struct {
	ID       string `json:"id"`
	Password string `json:"pwd"`
}

// ResetRequest is the payload of a password change.
type ResetRequest struct {
	OldPassword string `json:"old_pwd"`
	NewPassword string `json:"new_pwd"`
}

// Exists handles GET /user?id=. It answers a JSON boolean.
func (h *UserHandler) Exists(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	ok, err := h.Identity.Exists(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

// Register handles PUT /user with a JSON body {"id", "pwd"}.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Identity.Register(r.Context(), req.ID, req.Password); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// Login handles POST /user. The credentials come as form fields or as a
// JSON body. The token is returned in the body and set as a cookie.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Identity.Login(r.Context(), creds.ID, creds.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.setTokenCookie(w, res.Token)
	res.Token = auth.BearerValue(res.Token)
	writeJSON(w, http.StatusOK, res)
}

func readCredentials(r *http.Request) (Credentials, error) {
	var creds Credentials
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := decode(r, &creds)
		return creds, err
	}
	if err := r.ParseForm(); err != nil {
		return creds, fmt.Errorf("%w: %v", common.ErrMalformed, err)
	}
	creds.ID, creds.Password = r.PostForm.Get("id"), r.PostForm.Get("pwd")
	if creds.ID == "" || creds.Password == "" {
		return creds, fmt.Errorf("%w: id and pwd are required", common.ErrValidation)
	}
	return creds, nil
}

func (h *UserHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ResetPassword handles PATCH /user with {"old_pwd", "new_pwd"}.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Identity.ResetPassword(r.Context(), caller(r), req.OldPassword, req.NewPassword); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Erase handles DELETE /user. The caller's account and everything it owns
// are removed and the token cookie is cleared.
func (h *UserHandler) Erase(w http.ResponseWriter, r *http.Request) {
	if err := h.Identity.Erase(r.Context(), caller(r)); err != nil {
		fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, true)
}

// Profile handles GET /profile/{id}.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Identity.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetMeta returns a handler answering the metadata value key of the user
// named by the {id} path parameter, null when unset.
func (h *UserHandler) GetMeta(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := h.Identity.GetMeta(r.Context(), chi.URLParam(r, "id"), key)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// SetMeta returns a handler storing the query parameter param as the
// caller's metadata value key. The stored value is echoed back.
func (h *UserHandler) SetMeta(key, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value := r.URL.Query().Get(param)
		if value == "" {
			http.Error(w, param+" is required", http.StatusBadRequest)
			return
		}
		if err := h.Identity.SetMeta(r.Context(), caller(r), key, value); err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, value)
	}
}

// Location handles GET /geo. With ?id= it reads the location of a user who
// granted the caller its authority.
func (h *UserHandler) Location(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if other := r.URL.Query().Get("id"); other != "" && other != id {
		ok, err := h.Identity.Exists(r.Context(), other)
		if err != nil {
			fail(w, r, err)
			return
		}
		if !ok {
			fail(w, r, fmt.Errorf("%w: user %s doesn't exist", common.ErrValidation, other))
			return
		}
		if err := h.Permissions.EnsurePermitted(r.Context(), id, other); err != nil {
			fail(w, r, err)
			return
		}
		id = other
	}
	loc, err := h.Identity.Location(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// SetLocation handles PUT /geo with a JSON body [longitude, latitude].
// An empty body stores the default location.
func (h *UserHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	loc := service.DefaultLocation
	if r.ContentLength != 0 {
		if err := decode(r, &loc); err != nil {
			fail(w, r, err)
			return
		}
	}
	if err := h.Identity.SetLocation(r.Context(), caller(r), loc); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
