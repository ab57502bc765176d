package idp

import "context"

// Identity is the verified federated identity extracted from a provider
// token.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	ProviderID  string
}

// Verifier validates a raw provider token and resolves the identity it
// asserts. Implementations must reject expired or tampered tokens.
type Verifier interface {
	VerifyIDToken(ctx context.Context, raw string) (Identity, error)
}
