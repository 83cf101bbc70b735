package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/GuardPine/internal/auth"
	"github.com/atinyakov/GuardPine/internal/models"
	"github.com/atinyakov/GuardPine/internal/service"
)

// WeChatService defines the code based account operations.
type WeChatService interface {
	OpenID(ctx context.Context, code string) (string, error)
	Register(ctx context.Context, in service.WeChatRegistration) (string, error)
	Login(ctx context.Context, code, password string) (*service.LoginResult, error)
	Profile(ctx context.Context, code string) (*models.Profile, error)
}

// WeChatHandler signs mini-program users in with a login code.
type WeChatHandler struct {
	WeChat WeChatService
	// Users sets the token cookie the same way password login does.
	Users *UserHandler
}

// CodeLogin is the payload of POST /wechat/user.
type CodeLogin struct {
	Code     string `json:"code"`
	Password string `json:"pwd"`
}

// OpenID handles GET /openid?code=.
func (h *WeChatHandler) OpenID(w http.ResponseWriter, r *http.Request) {
	openid, err := h.WeChat.OpenID(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"openid": openid})
}

// Register handles PUT /wechat/user.
func (h *WeChatHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.WeChatRegistration
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	openid, err := h.WeChat.Register(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": openid})
}

// Login handles POST /wechat/user.
func (h *WeChatHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CodeLogin
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.WeChat.Login(r.Context(), req.Code, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	if h.Users != nil {
		h.Users.setTokenCookie(w, res.Token)
	}
	res.Token = auth.BearerValue(res.Token)
	writeJSON(w, http.StatusOK, res)
}

// Profile handles GET /wechat/user?code=.
func (h *WeChatHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.WeChat.Profile(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
