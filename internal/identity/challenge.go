package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ChallengePrefix is prepended to the nonce to form the message a caller signs.
const ChallengePrefix = "keyregistry login: "

var (
	// ErrNoChallenge is returned when no outstanding challenge exists for an
	// address, either because none was issued or it was already redeemed.
	ErrNoChallenge = errors.New("no outstanding login challenge for address")
	// ErrChallengeExpired is returned when a challenge is redeemed after its TTL.
	ErrChallengeExpired = errors.New("login challenge expired")
	// ErrBadSignature is returned when the signature does not recover to the
	// challenged address.
	ErrBadSignature = errors.New("signature does not match address")
	// ErrTooManyChallenges is returned by Issue when the store already holds
	// its maximum number of unexpired challenges.
	ErrTooManyChallenges = errors.New("too many outstanding login challenges")
)

// DefaultMaxPending bounds the number of outstanding challenges a store keeps.
const DefaultMaxPending = 10000

// Challenge is a login nonce handed to a caller.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeStore holds one outstanding login challenge per address.
// Challenges are single-use: a redeem attempt consumes the nonce whether or
// not the signature verifies.
type ChallengeStore struct {
	mu         sync.Mutex
	pending    map[common.Address]Challenge
	ttl        time.Duration
	maxPending int
	now        func() time.Time
}

// NewChallengeStore creates a ChallengeStore. ttl defaults to five minutes.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ChallengeStore{
		pending:    make(map[common.Address]Challenge),
		ttl:        ttl,
		maxPending: DefaultMaxPending,
		now:        time.Now,
	}
}

// SetMaxPending changes the outstanding-challenge limit. n <= 0 restores
// DefaultMaxPending.
func (s *ChallengeStore) SetMaxPending(n int) {
	if n <= 0 {
		n = DefaultMaxPending
	}
	s.mu.Lock()
	s.maxPending = n
	s.mu.Unlock()
}

// Pending returns the number of challenges currently held, expired or not.
func (s *ChallengeStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Issue creates a fresh challenge for addr, replacing any outstanding one.
// Expired challenges are dropped first; if the store is still full and addr
// holds no challenge, Issue fails with ErrTooManyChallenges.
func (s *ChallengeStore) Issue(addr common.Address) (Challenge, error) {
	nonce := uuid.New().String()
	ch := Challenge{
		Nonce:     nonce,
		Message:   ChallengePrefix + nonce,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	if _, replacing := s.pending[addr]; !replacing && len(s.pending) >= s.maxPending {
		return Challenge{}, ErrTooManyChallenges
	}
	s.pending[addr] = ch
	return ch, nil
}

// Redeem consumes the challenge for addr and checks that signature is an
// Ethereum personal-sign signature of its message by addr.
func (s *ChallengeStore) Redeem(addr common.Address, signature string) error {
	s.mu.Lock()
	ch, ok := s.pending[addr]
	delete(s.pending, addr)
	s.mu.Unlock()

	if !ok {
		return ErrNoChallenge
	}
	if s.now().After(ch.ExpiresAt) {
		return ErrChallengeExpired
	}

	signer, err := RecoverSigner(ch.Message, signature)
	if err != nil {
		return err
	}
	if signer != addr {
		return ErrBadSignature
	}
	return nil
}

// sweep drops expired challenges. Caller must hold s.mu.
func (s *ChallengeStore) sweep() {
	now := s.now()
	for addr, ch := range s.pending {
		if now.After(ch.ExpiresAt) {
			delete(s.pending, addr)
		}
	}
}

// RecoverSigner returns the address that produced a 65-byte hex personal-sign
// signature over message. Both {0,1} and {27,28} recovery ids are accepted.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: decode: %v", ErrBadSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrBadSignature, crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recover: %v", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
