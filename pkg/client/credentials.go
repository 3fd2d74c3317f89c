package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type credentialResponse struct {
	TokenID string         `json:"token_id"`
	Owner   common.Address `json:"owner"`
}

func parseTokenID(s string) (*uint256.Int, error) {
	id, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse token id %q: %w", s, err)
	}
	return id, nil
}

func credentialPath(tokenID *uint256.Int) string {
	return "/api/v1/credentials/" + tokenID.Dec()
}

// Mint issues a new credential token to to. Requires WithAdminSecret.
func (c *Client) Mint(ctx context.Context, to common.Address) (*uint256.Int, error) {
	var resp credentialResponse
	header := http.Header{}
	if c.adminSecret != "" {
		header.Set("X-Admin-Secret", c.adminSecret)
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/credentials", map[string]string{"to": to.Hex()}, &resp, header); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	return parseTokenID(resp.TokenID)
}

// OwnerOf returns the current owner of tokenID.
func (c *Client) OwnerOf(ctx context.Context, tokenID *uint256.Int) (common.Address, error) {
	var resp credentialResponse
	if err := c.call(ctx, http.MethodGet, credentialPath(tokenID), nil, &resp, nil); err != nil {
		return common.Address{}, fmt.Errorf("owner of: %w", err)
	}
	return resp.Owner, nil
}

// TokenOf returns the credential token held by addr.
func (c *Client) TokenOf(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	var resp credentialResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/credentials/by-owner/"+addr.Hex(), nil, &resp, nil); err != nil {
		return nil, fmt.Errorf("token of: %w", err)
	}
	return parseTokenID(resp.TokenID)
}

// Transfer moves tokenID from from to to on behalf of the logged-in caller.
func (c *Client) Transfer(ctx context.Context, tokenID *uint256.Int, from, to common.Address) error {
	body := map[string]string{"from": from.Hex(), "to": to.Hex()}
	if err := c.call(ctx, http.MethodPost, credentialPath(tokenID)+"/transfer", body, nil, nil); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

// Approve grants to the right to act for tokenID. Approving the zero address
// clears the approval.
func (c *Client) Approve(ctx context.Context, tokenID *uint256.Int, to common.Address) error {
	if err := c.call(ctx, http.MethodPost, credentialPath(tokenID)+"/approve", map[string]string{"to": to.Hex()}, nil, nil); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

// SetOperator grants or revokes operator rights over every token the
// logged-in caller owns.
func (c *Client) SetOperator(ctx context.Context, operator common.Address, approved bool) error {
	body := map[string]any{"operator": operator.Hex(), "approved": approved}
	if err := c.call(ctx, http.MethodPost, "/api/v1/credentials/operators", body, nil, nil); err != nil {
		return fmt.Errorf("set operator: %w", err)
	}
	return nil
}
