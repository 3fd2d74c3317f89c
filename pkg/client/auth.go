package client

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Login proves control of key to the registry and stores the returned caller
// token on the client. The token is also returned so it can be persisted.
func (c *Client) Login(ctx context.Context, key *ecdsa.PrivateKey) (string, error) {
	addr := crypto.PubkeyToAddress(key.PublicKey)

	var challenge struct {
		Message string `json:"message"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/challenge", map[string]string{"address": addr.Hex()}, &challenge, nil); err != nil {
		return "", fmt.Errorf("login challenge: %w", err)
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(challenge.Message)), key)
	if err != nil {
		return "", fmt.Errorf("sign challenge: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	body := map[string]string{"address": addr.Hex(), "signature": hexutil.Encode(sig)}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/token", body, &token, nil); err != nil {
		return "", fmt.Errorf("login token: %w", err)
	}

	c.mu.Lock()
	c.bearerToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return token.AccessToken, nil
}
