package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/f3rmion/keyserver/frost"
)

// ErrSessionConsumed is returned when a signing session is used twice.
var ErrSessionConsumed = errors.New("session: signing session already used")

// SigningSession holds one signer's nonce for a single signature. The
// nonce is erased on first use so it can never sign two messages.
type SigningSession struct {
	frost      *frost.FROST
	share      *frost.KeyShare
	commitment *frost.SigningCommitment

	mu    sync.Mutex
	nonce *frost.SigningNonce
}

// NewSigningSession samples fresh nonces for share.
func NewSigningSession(f *frost.FROST, share *frost.KeyShare, rng io.Reader) (*SigningSession, error) {
	if share == nil {
		return nil, errors.New("session: no key share")
	}

	nonce, commitment, err := f.SignRound1(rng, share)
	if err != nil {
		return nil, fmt.Errorf("session: sign round 1: %w", err)
	}

	return &SigningSession{
		frost:      f,
		share:      share,
		commitment: commitment,
		nonce:      nonce,
	}, nil
}

// NewSigningSession starts a signing session with the participant's share.
func (p *Participant) NewSigningSession(rng io.Reader) (*SigningSession, error) {
	if p.keyShare == nil {
		return nil, errors.New("session: key generation not finished")
	}
	return NewSigningSession(p.frost, p.keyShare, rng)
}

// Commitment returns the commitment to publish to the coordinator.
func (s *SigningSession) Commitment() *frost.SigningCommitment {
	return s.commitment
}

// Sign produces this signer's share of the signature over message.
func (s *SigningSession) Sign(message []byte, commitments []*frost.SigningCommitment) (*frost.SignatureShare, error) {
	s.mu.Lock()
	nonce := s.nonce
	s.nonce = nil
	s.mu.Unlock()

	if nonce == nil {
		return nil, ErrSessionConsumed
	}

	share, err := s.frost.SignRound2(s.share, nonce, message, commitments)
	if err != nil {
		return nil, fmt.Errorf("session: sign round 2: %w", err)
	}
	return share, nil
}

// Consumed reports whether the nonce was used.
func (s *SigningSession) Consumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce == nil
}
