package port

import "context"

// TokenValidator checks opaque bearer tokens issued by the auth subsystem.
type TokenValidator interface {
	Validate(ctx context.Context, token string) error
	Enabled() bool
}
