package telemetry

import "crypto/subtle"

// Authenticator checks a request key against the shared secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Authenticate fails closed: an empty key or an unconfigured secret never
// matches.
func (a *Authenticator) Authenticate(provided string) bool {
	if a == nil || len(a.secret) == 0 || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), a.secret) == 1
}

// Configured reports whether a secret was set.
func (a *Authenticator) Configured() bool {
	return a != nil && len(a.secret) > 0
}
