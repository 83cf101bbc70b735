package service

import (
	"context"
	"fmt"

	"github.com/atinyakov/GuardPine/internal/common"
)

// PermissionRepository stores permission edges. An edge (grantor, grantee)
// lets grantee act with grantor's authority.
type PermissionRepository interface {
	AddPermission(ctx context.Context, grantor, grantee string) (bool, error)
	RemovePermission(ctx context.Context, grantor, grantee string) error
	HasPermission(ctx context.Context, grantor, grantee string) (bool, error)
	Grantees(ctx context.Context, grantor string) ([]string, error)
	Grantors(ctx context.Context, grantee string) ([]string, error)
}

// UserChecker reports whether a user exists.
type UserChecker interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// PermissionService implements the one-hop permission graph.
type PermissionService struct {
	repo  PermissionRepository
	users UserChecker
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(repo PermissionRepository, users UserChecker) *PermissionService {
	return &PermissionService{repo: repo, users: users}
}

// Grant lets grantee act as grantor. It reports false when grantee already
// held the permission, which includes grantee being grantor itself.
func (s *PermissionService) Grant(ctx context.Context, grantor, grantee string) (bool, error) {
	if err := ensureUser(ctx, s.users, grantee); err != nil {
		return false, err
	}
	if grantee == grantor {
		return false, nil
	}
	return s.repo.AddPermission(ctx, grantor, grantee)
}

// Revoke withdraws the permission of grantee to act as grantor.
func (s *PermissionService) Revoke(ctx context.Context, grantor, grantee string) error {
	if err := ensureUser(ctx, s.users, grantee); err != nil {
		return err
	}
	if err := s.repo.RemovePermission(ctx, grantor, grantee); err != nil {
		return fmt.Errorf("%s not in %s's permission list: %w", grantee, grantor, err)
	}
	return nil
}

// PermissionsOf lists the users who may act as user, user itself first.
func (s *PermissionService) PermissionsOf(ctx context.Context, user string) ([]string, error) {
	grantees, err := s.repo.Grantees(ctx, user)
	if err != nil {
		return nil, err
	}
	return append([]string{user}, grantees...), nil
}

// GrantedTo lists the users whose authority user holds.
func (s *PermissionService) GrantedTo(ctx context.Context, user string) ([]string, error) {
	grantors, err := s.repo.Grantors(ctx, user)
	if err != nil {
		return nil, err
	}
	if grantors == nil {
		grantors = []string{}
	}
	return grantors, nil
}

// EnsurePermitted fails with common.ErrForbidden unless caller is owner or
// owner has granted caller its authority. Permission is never transitive.
func (s *PermissionService) EnsurePermitted(ctx context.Context, caller, owner string) error {
	if caller == owner {
		return nil
	}
	ok, err := s.repo.HasPermission(ctx, owner, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s may not act as %s", common.ErrForbidden, caller, owner)
	}
	return nil
}

// ensureUser fails with common.ErrValidation when id is empty or unknown.
func ensureUser(ctx context.Context, users UserChecker, id string) error {
	if id == "" {
		return fmt.Errorf("%w: user id is required", common.ErrValidation)
	}
	ok, err := users.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %s doesn't exist", common.ErrValidation, id)
	}
	return nil
}
