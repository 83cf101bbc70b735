package service

import (
	"context"
	"fmt"

	"github.com/atinyakov/GuardPine/internal/common"
)

// Authorizer decides whether caller may act as owner.
type Authorizer interface {
	EnsurePermitted(ctx context.Context, caller, owner string) error
}

// owners resolves and authorizes the owner a resource operation targets.
type owners struct {
	users UserChecker
	authz Authorizer
}

// resolve returns the owner an operation of caller applies to: explicit
// when given, caller otherwise. An explicit owner must exist and must have
// granted caller its authority.
func (o owners) resolve(ctx context.Context, caller, explicit string) (string, error) {
	if caller == "" {
		return "", common.ErrUnauthenticated
	}
	if explicit == "" || explicit == caller {
		return caller, nil
	}
	if err := ensureUser(ctx, o.users, explicit); err != nil {
		return "", err
	}
	if err := o.authz.EnsurePermitted(ctx, caller, explicit); err != nil {
		return "", err
	}
	return explicit, nil
}

// authorize checks caller against the stored owner of a loaded row.
func (o owners) authorize(ctx context.Context, caller, storedOwner string) error {
	if caller == "" {
		return common.ErrUnauthenticated
	}
	return o.authz.EnsurePermitted(ctx, caller, storedOwner)
}

func notFound(kind string, id int64, err error) error {
	return fmt.Errorf("%s %d: %w", kind, id, err)
}
