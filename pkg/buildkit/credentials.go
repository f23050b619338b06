package buildkit

import "sync"

// CredentialStore resolves a registry host to the credential configured for
// it. It is injected into a session at construction time (never read from
// the environment inside a handler, per spec.md §9's re-architecture
// guidance) and consulted by the Credentials callback handler. The solve
// request's exporter attributes do not carry the credential; they are built
// from the recipe's tags alone.
//
// Grounded on the shape of go-containerregistry's authn.Authenticator
// (present in the pack's dependency surface) but implemented locally: this
// system never pushes or pulls an image itself, so only the resolution
// shape is borrowed, not the transport.
type CredentialStore struct {
	mu     sync.RWMutex
	byHost map[string]RegistryCredential
}

// NewCredentialStore builds a store from zero or more known credentials.
func NewCredentialStore(creds ...RegistryCredential) *CredentialStore {
	s := &CredentialStore{byHost: make(map[string]RegistryCredential)}
	for _, c := range creds {
		s.byHost[c.Host] = c
	}
	return s
}

// Lookup returns the configured credential for host. ok is false when no
// credential is configured, in which case callers must proceed as if
// anonymous access were requested (spec.md §4.4).
func (s *CredentialStore) Lookup(host string) (username, password string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, found := s.byHost[host]
	if !found {
		return "", "", false
	}
	return c.Username, c.Password, true
}

// Set installs or replaces the credential for host.
func (s *CredentialStore) Set(c RegistryCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHost[c.Host] = c
}
