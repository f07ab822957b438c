package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		provided string
		want     bool
	}{
		{"matching key", "secret123", "secret123", true},
		{"wrong key", "secret123", "secret124", false},
		{"prefix of key", "secret123", "secret", false},
		{"missing key", "secret123", "", false},
		{"no secret configured", "", "", false},
		{"no secret configured with key", "", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewAuthenticator(tt.secret).Authenticate(tt.provided))
		})
	}
}

func TestNilAuthenticatorFailsClosed(t *testing.T) {
	var a *Authenticator
	assert.False(t, a.Authenticate("secret123"))
	assert.False(t, a.Configured())
}
