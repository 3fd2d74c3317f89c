// Package client is the Go SDK for the key registry HTTP API.
//
// # Authenticating
//
// Writes are made on behalf of an Ethereum account. Login signs the
// registry's challenge with the account key and keeps the returned caller
// token for subsequent requests:
//
//	key, err := client.LoadAccountKey(os.ExpandEnv("$HOME/.keyctl/account.key"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c := client.MustNew("https://keys.example.com")
//	if _, err := c.Login(ctx, key); err != nil {
//	    log.Fatal(err)
//	}
//
// # Publishing and reading keys
//
//	rec, err := c.SetKey(ctx, tokenID, "signing", "0x04ab...")
//	latest, err := c.GetLatestKey(ctx, tokenID, "signing")
//	all, err := c.History(ctx, tokenID, "signing")
//
// Reads need no authentication.
//
// # Errors
//
// Registry rejections are returned as *APIError values that unwrap to the
// package sentinels, so callers can branch with errors.Is:
//
//	if errors.Is(err, client.ErrUnauthorized) { ... }
package client
