package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/atinyakov/GuardPine/internal/models"
)

// OpenIDResolver exchanges a one-time login code for a stable subject.
type OpenIDResolver interface {
	OpenID(ctx context.Context, code string) (string, error)
}

// WeChatRegistration is the payload of a registration through a login code.
type WeChatRegistration struct {
	Code     string  `json:"code"`
	Password *string `json:"pwd"`
	Email    *string `json:"email"`
	Tel      *string `json:"tel"`
}

// WeChatService signs users in with their WeChat openid as account id.
type WeChatService struct {
	openids  OpenIDResolver
	identity *IdentityService
}

// NewWeChatService constructs a WeChatService.
func NewWeChatService(openids OpenIDResolver, identity *IdentityService) *WeChatService {
	return &WeChatService{openids: openids, identity: identity}
}

// OpenID resolves code.
func (s *WeChatService) OpenID(ctx context.Context, code string) (string, error) {
	return s.openids.OpenID(ctx, code)
}

// Register creates the account of the code's openid when it does not exist
// yet, then applies the optional password, email and phone number. Accounts
// created without a password get an unguessable one.
func (s *WeChatService) Register(ctx context.Context, in WeChatRegistration) (string, error) {
	openid, err := s.openids.OpenID(ctx, in.Code)
	if err != nil {
		return "", err
	}

	exists, err := s.identity.Exists(ctx, openid)
	if err != nil {
		return "", err
	}
	switch {
	case !exists:
		password := uuid.NewString()
		if in.Password != nil && *in.Password != "" {
			password = *in.Password
		}
		if err := s.identity.Register(ctx, openid, password); err != nil {
			return "", err
		}
	case in.Password != nil && *in.Password != "":
		if err := s.identity.SetPassword(ctx, openid, *in.Password); err != nil {
			return "", err
		}
	}

	if in.Email != nil {
		if err := s.identity.SetMeta(ctx, openid, models.MetaEmail, *in.Email); err != nil {
			return "", err
		}
	}
	if in.Tel != nil {
		if err := s.identity.SetMeta(ctx, openid, models.MetaTel, *in.Tel); err != nil {
			return "", err
		}
	}
	return openid, nil
}

// Login checks password against the account of the code's openid.
func (s *WeChatService) Login(ctx context.Context, code, password string) (*LoginResult, error) {
	openid, err := s.openids.OpenID(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.identity.Login(ctx, openid, password)
}

// Profile returns the public profile of the code's openid.
func (s *WeChatService) Profile(ctx context.Context, code string) (*models.Profile, error) {
	openid, err := s.openids.OpenID(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.identity.Profile(ctx, openid)
}
