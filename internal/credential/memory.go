package credential

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type operatorKey struct {
	owner    common.Address
	operator common.Address
}

// MemoryAuthority is an in-memory, thread-safe Issuer implementation.
// It is primarily useful for testing and for single-process deployments
// that do not require durable persistence across restarts.
type MemoryAuthority struct {
	mu        sync.RWMutex
	next      uint64
	owners    map[TokenID]common.Address
	holders   map[common.Address]TokenID
	approvals map[TokenID]common.Address
	operators map[operatorKey]bool
}

// NewMemoryAuthority creates an empty MemoryAuthority. Token ids start at 1.
func NewMemoryAuthority() *MemoryAuthority {
	return &MemoryAuthority{
		next:      1,
		owners:    make(map[TokenID]common.Address),
		holders:   make(map[common.Address]TokenID),
		approvals: make(map[TokenID]common.Address),
		operators: make(map[operatorKey]bool),
	}
}

// Mint implements Issuer.
func (a *MemoryAuthority) Mint(_ context.Context, to common.Address) (TokenID, error) {
	if to == (common.Address{}) {
		return TokenID{}, ErrZeroAddress
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.holders[to]; ok {
		return TokenID{}, ErrAlreadyIssued
	}
	id := NewTokenID(a.next)
	a.next++
	a.owners[id] = to
	a.holders[to] = id
	return id, nil
}

// OwnerOf implements Authority.
func (a *MemoryAuthority) OwnerOf(_ context.Context, tokenID TokenID) (common.Address, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	owner, ok := a.owners[tokenID]
	if !ok {
		return common.Address{}, ErrNoSuchToken
	}
	return owner, nil
}

// TokenOf implements Issuer.
func (a *MemoryAuthority) TokenOf(_ context.Context, addr common.Address) (TokenID, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.holders[addr]
	if !ok {
		return TokenID{}, ErrNoCredential
	}
	return id, nil
}

// IsApprovedOrOwner implements Authority.
func (a *MemoryAuthority) IsApprovedOrOwner(_ context.Context, addr common.Address, tokenID TokenID) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isApprovedOrOwner(addr, tokenID)
}

// isApprovedOrOwner must be called with a.mu held.
func (a *MemoryAuthority) isApprovedOrOwner(addr common.Address, tokenID TokenID) (bool, error) {
	owner, ok := a.owners[tokenID]
	if !ok {
		return false, ErrNoSuchToken
	}
	if addr == owner {
		return true, nil
	}
	if approved, ok := a.approvals[tokenID]; ok && approved == addr {
		return true, nil
	}
	return a.operators[operatorKey{owner: owner, operator: addr}], nil
}

// Approve implements Issuer. Only the owner or one of its operators may approve.
func (a *MemoryAuthority) Approve(_ context.Context, caller, to common.Address, tokenID TokenID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner, ok := a.owners[tokenID]
	if !ok {
		return ErrNoSuchToken
	}
	if caller != owner && !a.operators[operatorKey{owner: owner, operator: caller}] {
		return ErrNotApproved
	}
	if to == (common.Address{}) {
		delete(a.approvals, tokenID)
		return nil
	}
	a.approvals[tokenID] = to
	return nil
}

// SetApprovalForAll implements Issuer.
func (a *MemoryAuthority) SetApprovalForAll(_ context.Context, caller, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		return ErrZeroAddress
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	k := operatorKey{owner: caller, operator: operator}
	if approved {
		a.operators[k] = true
	} else {
		delete(a.operators, k)
	}
	return nil
}

// TransferFrom implements Issuer. The per-token approval is cleared on transfer.
func (a *MemoryAuthority) TransferFrom(_ context.Context, caller, from, to common.Address, tokenID TokenID) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ok, err := a.isApprovedOrOwner(caller, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApproved
	}
	if a.owners[tokenID] != from {
		return ErrNotOwner
	}
	if from != to {
		if _, held := a.holders[to]; held {
			return ErrAlreadyIssued
		}
	}

	delete(a.approvals, tokenID)
	delete(a.holders, from)
	a.owners[tokenID] = to
	a.holders[to] = tokenID
	return nil
}
