// Package service provides the business logic of the companion backend:
// accounts and their metadata, the permission graph, the owned resources
// and pairing, delegating persistence to repository interfaces.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GuardPine/internal/auth"
	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

// DefaultLocation is reported for users that never stored a location.
var DefaultLocation = [2]float64{113.5430570, 22.3571951}

// UserRepository defines the account persistence required by IdentityService.
type UserRepository interface {
	// UserExists returns true if a user with the given id exists.
	UserExists(ctx context.Context, id string) (bool, error)
	// CreateUser inserts a new account; common.ErrAlreadyExists when taken.
	CreateUser(ctx context.Context, id string, pwdHash []byte) error
	// GetUser loads an account; common.ErrNotFound when absent.
	GetUser(ctx context.Context, id string) (*models.User, error)
	// UpdatePassword replaces the stored digest.
	UpdatePassword(ctx context.Context, id string, pwdHash []byte) error
	// EraseUser deletes the account and everything referencing it atomically.
	EraseUser(ctx context.Context, id string) error
}

// MetaRepository defines per-key metadata persistence.
type MetaRepository interface {
	GetMeta(ctx context.Context, userID, key string) (*string, error)
	GetMetaKeys(ctx context.Context, userID string, keys []string) (map[string]string, error)
	SetMeta(ctx context.Context, userID, key, value string) error
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(subject, scope string, ttl time.Duration) (string, error)
}

// LoginResult is returned on successful password login.
type LoginResult struct {
	Token  string  `json:"token"`
	Name   *string `json:"name"`
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar"`
}

// IdentityService implements account operations.
type IdentityService struct {
	users    UserRepository
	meta     MetaRepository
	tokens   TokenIssuer
	tokenTTL time.Duration
	cost     int
}

// NewIdentityService constructs an IdentityService. Tokens are issued with tokenTTL.
func NewIdentityService(users UserRepository, meta MetaRepository, tokens TokenIssuer, tokenTTL time.Duration) *IdentityService {
	return &IdentityService{users: users, meta: meta, tokens: tokens, tokenTTL: tokenTTL, cost: bcrypt.DefaultCost}
}

// Exists reports whether id is a registered user.
func (s *IdentityService) Exists(ctx context.Context, id string) (bool, error) {
	return s.users.UserExists(ctx, id)
}

// Register creates an account protected by password.
func (s *IdentityService) Register(ctx context.Context, id, password string) error {
	if strings.TrimSpace(id) == "" || password == "" {
		return fmt.Errorf("%w: id and password are required", common.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, id, hash)
}

// VerifyPassword reports whether password matches the stored digest of id.
func (s *IdentityService) VerifyPassword(ctx context.Context, id, password string) (bool, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrHashTooShort):
		return false, nil
	default:
		return false, err
	}
}

// IssueToken returns a user-scoped token for id.
func (s *IdentityService) IssueToken(id string) (string, error) {
	return s.tokens.Issue(id, auth.ScopeUser, s.tokenTTL)
}

// Login checks the password of id and returns a fresh token with the public profile fields.
func (s *IdentityService) Login(ctx context.Context, id, password string) (*LoginResult, error) {
	ok, err := s.VerifyPassword(ctx, id, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: wrong password", common.ErrWrongCredential)
	}

	token, err := s.IssueToken(id)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Name: profile.Name, Bio: profile.Bio, Avatar: profile.Avatar}, nil
}

// ResetPassword replaces the password of id when oldPassword matches.
func (s *IdentityService) ResetPassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", common.ErrValidation)
	}
	ok, err := s.VerifyPassword(ctx, id, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: wrong password", common.ErrWrongCredential)
	}
	return s.SetPassword(ctx, id, newPassword)
}

// SetPassword replaces the password of id unconditionally.
func (s *IdentityService) SetPassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

// Erase deletes id together with its relations, favorites, reminders,
// activities, permission edges and metadata.
func (s *IdentityService) Erase(ctx context.Context, id string) error {
	return s.users.EraseUser(ctx, id)
}

// GetMeta returns the metadata value of key, nil when unset.
func (s *IdentityService) GetMeta(ctx context.Context, id, key string) (*string, error) {
	if err := s.ensureExists(ctx, id); err != nil {
		return nil, err
	}
	return s.meta.GetMeta(ctx, id, key)
}

// SetMeta stores value under key for id.
func (s *IdentityService) SetMeta(ctx context.Context, id, key, value string) error {
	if err := s.ensureExists(ctx, id); err != nil {
		return err
	}
	return s.meta.SetMeta(ctx, id, key, value)
}

// Profile returns the public profile of id.
func (s *IdentityService) Profile(ctx context.Context, id string) (*models.Profile, error) {
	if err := s.ensureExists(ctx, id); err != nil {
		return nil, err
	}
	values, err := s.meta.GetMetaKeys(ctx, id, []string{models.MetaName, models.MetaAvatar, models.MetaBio})
	if err != nil {
		return nil, err
	}
	p := &models.Profile{ID: id}
	if v, ok := values[models.MetaName]; ok {
		p.Name = &v
	}
	if v, ok := values[models.MetaAvatar]; ok {
		p.Avatar = &v
	}
	if v, ok := values[models.MetaBio]; ok {
		p.Bio = &v
	}
	return p, nil
}

// Location returns the stored [longitude, latitude] of id, or DefaultLocation.
func (s *IdentityService) Location(ctx context.Context, id string) ([2]float64, error) {
	raw, err := s.GetMeta(ctx, id, models.MetaLocation)
	if err != nil {
		return [2]float64{}, err
	}
	if raw == nil {
		return DefaultLocation, nil
	}
	var loc [2]float64
	if err := json.Unmarshal([]byte(*raw), &loc); err != nil {
		return DefaultLocation, nil
	}
	return loc, nil
}

// SetLocation stores the [longitude, latitude] of id.
func (s *IdentityService) SetLocation(ctx context.Context, id string, loc [2]float64) error {
	if loc[0] < -180 || loc[0] > 180 || loc[1] < -90 || loc[1] > 90 {
		return fmt.Errorf("%w: location out of range", common.ErrValidation)
	}
	raw, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.SetMeta(ctx, id, models.MetaLocation, string(raw))
}

func (s *IdentityService) ensureExists(ctx context.Context, id string) error {
	ok, err := s.users.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	return nil
}
