package prometheus

import (
	"context"

	"github.com/MrEthical07/statelessauth"
)

type nopStore struct{}

func (nopStore) FindByEmail(context.Context, string) (statelessauth.Principal, error) {
	return statelessauth.Principal{}, statelessauth.ErrPrincipalNotFound
}

func (nopStore) ExistsByEmail(context.Context, string) (bool, error) { return false, nil }

func (nopStore) CreatePrincipal(context.Context, statelessauth.NewPrincipal) (statelessauth.Principal, error) {
	return statelessauth.Principal{}, statelessauth.ErrResourceAlreadyExists
}
