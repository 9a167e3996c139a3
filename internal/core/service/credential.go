// Package service provides domain services for SigMesh.
package service

import (
	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/pkg/token"
)

// CredentialStore holds the provisioned client records.
//
// It is populated once by NewCredentialStore and is read-only afterwards,
// so lookups need no locking.
type CredentialStore struct {
	clients    map[string]*domain.ClientCredential
	iterations int
}

// NewCredentialStore validates records and builds a store.
//
// Any invalid or duplicate record fails the whole load.
func NewCredentialStore(records []*domain.ClientCredential, iterations int) (*CredentialStore, error) {
	clients := make(map[string]*domain.ClientCredential, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := clients[rec.ID]; dup {
			return nil, domain.ErrInvalidArgument.WithDetails("duplicate tid " + rec.ID)
		}
		c := *rec
		clients[rec.ID] = &c
	}
	return &CredentialStore{clients: clients, iterations: iterations}, nil
}

// Lookup returns the record for tid.
func (s *CredentialStore) Lookup(tid string) (*domain.ClientCredential, error) {
	c, ok := s.clients[tid]
	if !ok {
		return nil, domain.ErrClientNotFound.WithDetails(tid)
	}
	return c, nil
}

// VerifySecret reports whether presented is the client's pre-shared secret.
// Unknown clients never verify.
func (s *CredentialStore) VerifySecret(tid, presented string) bool {
	c, ok := s.clients[tid]
	if !ok {
		return false
	}
	return token.NewHasher(c.Salt, s.iterations).Verify(presented, c.HashedSecret)
}

// VerifyResetCookie reports whether presented is the client's reset cookie.
func (s *CredentialStore) VerifyResetCookie(tid, presented string) bool {
	c, ok := s.clients[tid]
	if !ok {
		return false
	}
	return token.NewHasher(c.Salt, s.iterations).Verify(presented, c.HashedResetCookie)
}

// Len returns the number of provisioned clients.
func (s *CredentialStore) Len() int {
	return len(s.clients)
}

// IDs returns all provisioned client IDs.
func (s *CredentialStore) IDs() []string {
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}

// NewClientCredential provisions a record for tid from plaintext secrets.
// The plaintext values are not retained.
func NewClientCredential(tid string, maxSessions int, secret, resetCookie string, iterations int) (*domain.ClientCredential, error) {
	salt, err := token.GenerateSalt()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	h := token.NewHasher(salt, iterations)
	c := &domain.ClientCredential{
		ID:                tid,
		MaxSessions:       maxSessions,
		Salt:              salt,
		HashedSecret:      h.Hash(secret),
		HashedResetCookie: h.Hash(resetCookie),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
