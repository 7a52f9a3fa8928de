package roster

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type Status int

const (
	StatusNew Status = iota
	StatusExists
)

func (s Status) String() string {
	if s == StatusExists {
		return "exists"
	}
	return "new"
}

type Resolution struct {
	Status  Status
	Account user.User // set when Status == StatusExists
}

// AccountFinder looks an account up by its email.
type AccountFinder interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

// Resolver tells whether a roster row matches an existing account.
// Emails are compared in their canonical form, so matching is case-insensitive.
type Resolver struct {
	accounts AccountFinder
}

func NewResolver(accounts AccountFinder) *Resolver {
	return &Resolver{accounts: accounts}
}

func (r *Resolver) Resolve(ctx context.Context, row RosterRow) (Resolution, error) {
	usr, err := r.accounts.GetByEmail(ctx, core.CleanEmail(row.Email))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Resolution{Status: StatusNew}, nil
		}
		return Resolution{}, errors.Wrap(err, "finding user by email")
	}
	return Resolution{Status: StatusExists, Account: usr}, nil
}
