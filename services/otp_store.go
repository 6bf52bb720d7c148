package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OTPChallenge is one outstanding login code. Only the HMAC of the code
// is stored; the plaintext exists for the lifetime of the delivery call.
type OTPChallenge struct {
	Ref          string
	MemberID     uuid.UUID
	MemberNumber string
	Phone        string
	CodeHash     string
	Channel      string // sms or email
	Destination  string // masked, for client display
	CreatedAt    int64  // unix seconds
	ExpiresAt    int64
	Attempts     int
	RateKey      string
}

// ChallengeStore holds outstanding challenges and the per-member
// request history for rate limiting. Implementations must be safe for
// concurrent use.
type ChallengeStore interface {
	Put(ctx context.Context, c *OTPChallenge) error
	Get(ctx context.Context, ref string) (*OTPChallenge, error)
	Delete(ctx context.Context, ref string) error
	// IncrementAttempts bumps the failed-attempt counter and returns
	// the new value.
	IncrementAttempts(ctx context.Context, ref string) (int, error)
	// CountRecent returns how many recorded issuances against rateKey
	// fall inside the window ending at now.
	CountRecent(ctx context.Context, rateKey string, now time.Time, window time.Duration) (int, error)
	// RecordRequest logs one issuance against rateKey. Callers only
	// record requests that cleared the rate limit, so a rejected burst
	// cannot stretch the window.
	RecordRequest(ctx context.Context, rateKey string, now time.Time, window time.Duration) error
}

type memoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*OTPChallenge
	requests   map[string][]int64
	now        func() time.Time
}

// NewMemoryChallengeStore returns the default single-process store.
// Deployments running more than one API instance should use the Redis
// store so challenges survive load balancing.
func NewMemoryChallengeStore() ChallengeStore {
	return &memoryChallengeStore{
		challenges: make(map[string]*OTPChallenge),
		requests:   make(map[string][]int64),
		now:        time.Now,
	}
}

func (s *memoryChallengeStore) Put(_ context.Context, c *OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	cp := *c
	s.challenges[c.Ref] = &cp
	return nil
}

func (s *memoryChallengeStore) Get(_ context.Context, ref string) (*OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[ref]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memoryChallengeStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, ref)
	return nil
}

func (s *memoryChallengeStore) IncrementAttempts(_ context.Context, ref string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[ref]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s *memoryChallengeStore) CountRecent(_ context.Context, rateKey string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-window).Unix()
	kept := s.requests[rateKey][:0]
	for _, ts := range s.requests[rateKey] {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	s.requests[rateKey] = kept
	return len(kept), nil
}

func (s *memoryChallengeStore) RecordRequest(_ context.Context, rateKey string, now time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[rateKey] = append(s.requests[rateKey], now.Unix())
	return nil
}

// sweep drops expired challenges; called under the lock on each Put so
// abandoned codes do not accumulate.
func (s *memoryChallengeStore) sweep() {
	nowUnix := s.now().Unix()
	for ref, c := range s.challenges {
		if c.ExpiresAt <= nowUnix {
			delete(s.challenges, ref)
		}
	}
}
