package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmerrifield20/keyregistry/internal/credential"
	"github.com/jmerrifield20/keyregistry/internal/ledger"
	"go.uber.org/zap"
)

// Write outcomes reported to the metrics callback.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// MetricsRecordFunc is an optional callback invoked once per SetKey call.
type MetricsRecordFunc func(outcome string)

// Registry is the credential-gated key registry.
type Registry struct {
	store     Store
	authority credential.Authority
	ledger    ledger.Ledger     // nil = no audit entries
	onMetrics MetricsRecordFunc // nil = no metrics
	logger    *zap.Logger
}

// NewRegistry creates a Registry over store. Every write is authorised
// against authority at call time.
func NewRegistry(store Store, authority credential.Authority, logger *zap.Logger) *Registry {
	return &Registry{store: store, authority: authority, logger: logger}
}

// SetLedger configures the audit ledger that records successful writes.
func (r *Registry) SetLedger(l ledger.Ledger) {
	r.ledger = l
}

// SetMetrics configures the per-write outcome callback.
func (r *Registry) SetMetrics(fn MetricsRecordFunc) {
	r.onMetrics = fn
}

func (r *Registry) record(outcome string) {
	if r.onMetrics != nil {
		r.onMetrics(outcome)
	}
}

// SetKey appends value to the history of (tokenID, name) on behalf of caller.
// Input checks run before the authority is consulted, and both run before the
// store is touched, so a rejected write leaves no trace.
func (r *Registry) SetKey(ctx context.Context, tokenID credential.TokenID, name, value string, caller common.Address) (*Record, error) {
	if value == "" {
		r.record(OutcomeInvalid)
		return nil, ErrEmptyValue
	}
	if name == "" {
		r.record(OutcomeInvalid)
		return nil, ErrEmptyName
	}

	slot := Slot(tokenID, name)

	ok, err := r.authority.IsApprovedOrOwner(ctx, caller, tokenID)
	if err != nil {
		if errors.Is(err, credential.ErrNoSuchToken) {
			r.record(OutcomeUnauthorized)
		} else {
			r.record(OutcomeError)
		}
		return nil, fmt.Errorf("authorize %s: %w", slot, err)
	}
	if !ok {
		r.record(OutcomeUnauthorized)
		r.logger.Info("key write rejected",
			zap.String("slot", slot.String()),
			zap.String("caller", caller.Hex()),
		)
		return nil, ErrUnauthorized
	}

	rec, err := r.store.Append(ctx, slot, value, caller)
	if err != nil {
		r.record(OutcomeError)
		return nil, fmt.Errorf("append %s: %w", slot, err)
	}
	r.record(OutcomeOK)

	r.logger.Info("key set",
		zap.String("slot", slot.String()),
		zap.Int("index", rec.Index),
		zap.String("caller", caller.Hex()),
	)
	r.appendLedger(ctx, slot, caller, rec)
	return rec, nil
}

// appendLedger records a write in the audit ledger in a non-fatal manner.
func (r *Registry) appendLedger(ctx context.Context, slot SlotKey, caller common.Address, rec *Record) {
	if r.ledger == nil {
		return
	}
	payload := map[string]any{
		"token_id":   credential.FormatTokenID(slot.TokenID),
		"name":       slot.Name,
		"index":      rec.Index,
		"public_key": rec.Value,
	}
	if _, err := r.ledger.Append(ctx, slot.String(), ledger.ActionSetKey, caller.Hex(), payload); err != nil {
		r.logger.Error("ledger append failed (non-fatal)",
			zap.String("slot", slot.String()),
			zap.Error(err),
		)
	}
}

// GetKey returns the public key at index in the history of (tokenID, name).
func (r *Registry) GetKey(ctx context.Context, tokenID credential.TokenID, name string, index int) (string, error) {
	rec, err := r.GetRecord(ctx, tokenID, name, index)
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// GetRecord is GetKey returning the full record.
func (r *Registry) GetRecord(ctx context.Context, tokenID credential.TokenID, name string, index int) (*Record, error) {
	return r.store.Get(ctx, Slot(tokenID, name), index)
}

// GetLatestKey returns the most recently appended public key of (tokenID, name).
func (r *Registry) GetLatestKey(ctx context.Context, tokenID credential.TokenID, name string) (string, error) {
	rec, err := r.LatestRecord(ctx, tokenID, name)
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// LatestRecord is GetLatestKey returning the full record.
func (r *Registry) LatestRecord(ctx context.Context, tokenID credential.TokenID, name string) (*Record, error) {
	return r.store.Latest(ctx, Slot(tokenID, name))
}

// History returns the full history of (tokenID, name), oldest first.
func (r *Registry) History(ctx context.Context, tokenID credential.TokenID, name string) ([]Record, error) {
	return r.store.History(ctx, Slot(tokenID, name))
}

// Len returns the history length of (tokenID, name); 0 if never written.
func (r *Registry) Len(ctx context.Context, tokenID credential.TokenID, name string) (int, error) {
	return r.store.Len(ctx, Slot(tokenID, name))
}

// Names returns the slot names written under tokenID, sorted.
func (r *Registry) Names(ctx context.Context, tokenID credential.TokenID) ([]string, error) {
	return r.store.Names(ctx, tokenID)
}
