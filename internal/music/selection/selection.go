// Package selection keeps candidate lists waiting for a user's choice.
package selection

import (
	"errors"
	"sync"
	"time"

	"github.com/keshon/rbot/internal/music/sources"

	"github.com/google/uuid"
)

const DefaultTTL = 60 * time.Second

var (
	ErrNotRequester     = errors.New("only the requester can choose")
	ErrSelectionExpired = errors.New("selection expired")
	ErrUnknownChoice    = errors.New("unknown choice")
)

type pending struct {
	candidates []sources.Candidate
	requester  sources.Requester
	timer      *time.Timer
}

// Store holds open selections until they are chosen, cancelled or expire.
// Each token is consumed at most once.
type Store struct {
	mu      sync.Mutex
	pending map[string]*pending
}

func NewStore() *Store {
	return &Store{pending: make(map[string]*pending)}
}

// Open registers candidates for requester and returns the token. onExpire
// runs on its own goroutine if nobody chooses or cancels within ttl.
func (s *Store) Open(candidates []sources.Candidate, requester sources.Requester, ttl time.Duration, onExpire func()) string {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if len(candidates) > sources.MaxCandidates {
		candidates = candidates[:sources.MaxCandidates]
	}

	token := uuid.NewString()
	p := &pending{
		candidates: append([]sources.Candidate(nil), candidates...),
		requester:  requester,
	}

	s.mu.Lock()
	s.pending[token] = p
	p.timer = time.AfterFunc(ttl, func() {
		if s.take(token) != nil && onExpire != nil {
			onExpire()
		}
	})
	s.mu.Unlock()
	return token
}

// Choose consumes the selection and returns the candidate whose Token is
// value.
func (s *Store) Choose(token, userID, value string) (sources.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok {
		return sources.Candidate{}, ErrSelectionExpired
	}
	if userID != p.requester.ID {
		return sources.Candidate{}, ErrNotRequester
	}
	for _, c := range p.candidates {
		if c.Token == value {
			p.timer.Stop()
			delete(s.pending, token)
			return c, nil
		}
	}
	return sources.Candidate{}, ErrUnknownChoice
}

func (s *Store) Cancel(token, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok {
		return ErrSelectionExpired
	}
	if userID != p.requester.ID {
		return ErrNotRequester
	}
	p.timer.Stop()
	delete(s.pending, token)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) take(token string) *pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[token]
	if !ok {
		return nil
	}
	delete(s.pending, token)
	return p
}
