// Package auth implements OCPP security profile 1: HTTP Basic credentials presented by a
// charger on the WebSocket upgrade, checked against per-charger bcrypt hashes.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("auth: missing basic credentials")
	ErrUnknownCharger     = errors.New("auth: charger has no credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// BasicAuthenticator checks Basic credentials. The username must equal the charger id.
type BasicAuthenticator struct {
	hashes map[string]string
	hasher Hasher
}

// NewBasicAuthenticator builds an authenticator from charger id to bcrypt hash.
func NewBasicAuthenticator(hashes map[string]string, hasher Hasher) *BasicAuthenticator {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	normalized := make(map[string]string, len(hashes))
	for id, hash := range hashes {
		normalized[strings.TrimSpace(id)] = strings.TrimSpace(hash)
	}
	return &BasicAuthenticator{hashes: normalized, hasher: hasher}
}

// Authenticate validates the request's credentials for chargerID.
func (a *BasicAuthenticator) Authenticate(r *http.Request, chargerID string) error {
	username, password, ok := r.BasicAuth()
	if !ok {
		return ErrMissingCredentials
	}
	if username != chargerID {
		return ErrInvalidCredentials
	}
	hash, ok := a.hashes[chargerID]
	if !ok || hash == "" {
		return ErrUnknownCharger
	}
	if err := a.hasher.Compare(hash, password); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
