package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/juju/clock"

	"github.com/atinyakov/GuardPine/internal/cache"
	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

const (
	pairingCodeAttempts = 16
	pairingCodeLimit    = 10_000
	defaultPairingLabel = "relative"
)

type pairingCode struct {
	issuer   string
	consumed bool
}

// PairingService pairs two accounts through a short-lived six digit code:
// the issuer shows the code, the other party enters it.
type PairingService struct {
	codes     *cache.TTL[string, pairingCode]
	relations RelationRepository
	newCode   func() (string, error)
}

// NewPairingService constructs a PairingService whose codes live for ttl.
func NewPairingService(relations RelationRepository, ttl time.Duration, clk clock.Clock) *PairingService {
	return &PairingService{
		codes:     cache.New[string, pairingCode](ttl, pairingCodeLimit, clk),
		relations: relations,
		newCode:   randomCode,
	}
}

// Issue returns a fresh code for owner. It fails with common.ErrExhausted
// when no free code is found within a bounded number of draws.
func (s *PairingService) Issue(_ context.Context, owner string) (string, error) {
	if owner == "" {
		return "", common.ErrUnauthenticated
	}
	for i := 0; i < pairingCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		if s.codes.SetIfAbsent(code, pairingCode{issuer: owner}) {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free pairing code after %d draws", common.ErrExhausted, pairingCodeAttempts)
}

// Consume redeems code on behalf of caller. The issuer gets a relation to
// caller labelled label, and caller grants the issuer its authority.
// Unknown or expired codes fail with common.ErrNotFound; a code that was
// already redeemed fails with common.ErrGone. The code is held while the
// pairing is written and released again if writing fails.
func (s *PairingService) Consume(ctx context.Context, code, caller, label string) (*models.Relation, error) {
	if caller == "" {
		return nil, common.ErrUnauthenticated
	}

	var (
		issuer string
		reused bool
	)
	found := s.codes.Update(code, func(p pairingCode) pairingCode {
		issuer, reused = p.issuer, p.consumed
		if issuer != caller {
			p.consumed = true
		}
		return p
	})
	switch {
	case !found:
		return nil, fmt.Errorf("pairing code %s: %w", code, common.ErrNotFound)
	case reused:
		return nil, fmt.Errorf("pairing code %s: %w", code, common.ErrGone)
	case issuer == caller:
		return nil, fmt.Errorf("%w: cannot pair with oneself", common.ErrValidation)
	}

	if label = strings.TrimSpace(label); label == "" {
		label = defaultPairingLabel
	}
	rel, err := s.relations.CreateRelation(ctx,
		models.Relation{FromUserID: issuer, ToUserID: caller, Relation: label},
		&models.Grant{Grantor: caller, Grantee: issuer},
	)
	if err != nil {
		s.codes.Update(code, func(p pairingCode) pairingCode {
			p.consumed = false
			return p
		})
		return nil, err
	}
	return rel, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("draw pairing code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
