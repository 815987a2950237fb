package auth

import (
	"context"
	"errors"

	"codeGoalsAPI/internal/types/target"
)

// ErrNoAccount means no account is signed in on this device or request.
var ErrNoAccount = errors.New("auth: no authenticated account")

// AccountProvider exposes the identity of the account a component is acting
// for. The API server builds one per request from verified token claims; the
// CLI builds one from device config.
type AccountProvider interface {
	CurrentAccountID() (string, error)
	CurrentAccountEmail() (string, error)
}

// StaticProvider is an AccountProvider with fixed identity.
type StaticProvider struct {
	UID   string
	Email string
}

func (p StaticProvider) CurrentAccountID() (string, error) {
	if p.UID == "" {
		return "", ErrNoAccount
	}
	return p.UID, nil
}

func (p StaticProvider) CurrentAccountEmail() (string, error) {
	if p.Email == "" {
		return "", ErrNoAccount
	}
	return target.NormalizeEmail(p.Email), nil
}

// Directory is the administrative email-to-account-id lookup. Only available
// where the auth provider exposes one; the friend resolver uses it as its
// last stage.
type Directory interface {
	LookupUIDByEmail(ctx context.Context, email string) (string, error)
}
