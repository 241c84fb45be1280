package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Credentials are the already-derived API credentials for the private
// channel and the CLOB REST API. This module never performs key
// derivation; credentials arrive fully formed from a provider.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
	Wallet     common.Address
}

// Valid reports whether all three API credential parts are present.
func (c Credentials) Valid() bool {
	return c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// CredentialProvider supplies credentials on demand. Implementations may
// read them from config, a secrets manager, or an external derivation
// service.
type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a CredentialProvider returning a fixed set.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}
