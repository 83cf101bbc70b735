package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/GuardPine/internal/models"
)

// PairingService defines the matching code operations.
type PairingService interface {
	Issue(ctx context.Context, owner string) (string, error)
	Consume(ctx context.Context, code, caller, label string) (*models.Relation, error)
}

// PairingHandler pairs two accounts through a short-lived code.
type PairingHandler struct {
	Pairing PairingService
}

// ConsumeRequest is the payload of PUT /pairing.
type ConsumeRequest struct {
	Code     string `json:"code"`
	Relation string `json:"relation"`
}

// Issue handles POST /pairing and answers {"code"}.
func (h *PairingHandler) Issue(w http.ResponseWriter, r *http.Request) {
	code, err := h.Pairing.Issue(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

// Consume handles PUT /pairing. The issuer of the code gets the caller as
// a relative and may act on the caller's behalf.
func (h *PairingHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	rel, err := h.Pairing.Consume(r.Context(), req.Code, caller(r), req.Relation)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}
