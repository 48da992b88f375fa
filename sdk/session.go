package sdk

import (
	"sync"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
)

// StaticSession is a Session backed by fixed values that can be swapped at
// any time. Operations already dispatched keep the values they captured.
type StaticSession struct {
	mu       sync.RWMutex
	identity stellarwallet.Identity
	asset    stellarwallet.Asset
}

// NewStaticSession creates a session for id with asset selected.
func NewStaticSession(id stellarwallet.Identity, asset stellarwallet.Asset) *StaticSession {
	return &StaticSession{identity: id, asset: asset}
}

func (s *StaticSession) Identity() stellarwallet.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *StaticSession) CurrentAsset() stellarwallet.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.asset
}

// SelectAsset changes the current asset.
func (s *StaticSession) SelectAsset(a stellarwallet.Asset) {
	s.mu.Lock()
	s.asset = a
	s.mu.Unlock()
}

// captured holds what an operation read from the session at dispatch time.
// The seed is a private copy, wiped when the operation finishes.
type captured struct {
	identity stellarwallet.Identity
	asset    stellarwallet.Asset
}

func capture(s stellarwallet.Session) captured {
	if s == nil {
		return captured{}
	}
	id := s.Identity()
	seed := make([]byte, len(id.Seed))
	copy(seed, id.Seed)
	return captured{
		identity: stellarwallet.Identity{AccountID: id.AccountID, Seed: seed},
		asset:    s.CurrentAsset(),
	}
}
