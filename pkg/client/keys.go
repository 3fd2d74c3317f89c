package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// KeyRecord is one entry of a slot's key history.
type KeyRecord struct {
	TokenID   string         `json:"token_id"`
	Name      string         `json:"name"`
	Index     int            `json:"index"`
	PublicKey string         `json:"public_key"`
	SetBy     common.Address `json:"set_by"`
	SetAt     time.Time      `json:"set_at"`
}

func keysPath(tokenID *uint256.Int) string {
	return "/api/v1/tokens/" + tokenID.Dec() + "/keys"
}

func nameQuery(name string) string {
	return "?" + url.Values{"name": {name}}.Encode()
}

// SetKey appends publicKey to the history of (tokenID, name). Requires a
// caller token for the owner or an approved address.
func (c *Client) SetKey(ctx context.Context, tokenID *uint256.Int, name, publicKey string) (*KeyRecord, error) {
	var rec KeyRecord
	body := map[string]string{"name": name, "public_key": publicKey}
	if err := c.call(ctx, http.MethodPost, keysPath(tokenID), body, &rec, nil); err != nil {
		return nil, fmt.Errorf("set key: %w", err)
	}
	return &rec, nil
}

// GetKey returns the record at index in the history of (tokenID, name).
func (c *Client) GetKey(ctx context.Context, tokenID *uint256.Int, name string, index int) (*KeyRecord, error) {
	var rec KeyRecord
	path := keysPath(tokenID) + "/" + strconv.Itoa(index) + nameQuery(name)
	if err := c.call(ctx, http.MethodGet, path, nil, &rec, nil); err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	return &rec, nil
}

// GetLatestKey returns the most recent record of (tokenID, name).
func (c *Client) GetLatestKey(ctx context.Context, tokenID *uint256.Int, name string) (*KeyRecord, error) {
	var rec KeyRecord
	path := keysPath(tokenID) + "/latest" + nameQuery(name)
	if err := c.call(ctx, http.MethodGet, path, nil, &rec, nil); err != nil {
		return nil, fmt.Errorf("get latest key: %w", err)
	}
	return &rec, nil
}

// History returns every record of (tokenID, name), oldest first.
func (c *Client) History(ctx context.Context, tokenID *uint256.Int, name string) ([]KeyRecord, error) {
	var resp struct {
		TokenID string      `json:"token_id"`
		Name    string      `json:"name"`
		Records []KeyRecord `json:"records"`
	}
	if err := c.call(ctx, http.MethodGet, keysPath(tokenID)+nameQuery(name), nil, &resp, nil); err != nil {
		return nil, fmt.Errorf("key history: %w", err)
	}
	for i := range resp.Records {
		resp.Records[i].TokenID = resp.TokenID
		resp.Records[i].Name = resp.Name
	}
	return resp.Records, nil
}

// Names returns the slot names written under tokenID, sorted.
func (c *Client) Names(ctx context.Context, tokenID *uint256.Int) ([]string, error) {
	var resp struct {
		Names []string `json:"names"`
	}
	path := "/api/v1/tokens/" + tokenID.Dec() + "/names"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp, nil); err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	return resp.Names, nil
}
