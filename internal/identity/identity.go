// Package identity authenticates registry callers.
//
// It provides:
//   - LoadOrCreateKey: loads or generates the RSA signing key on disk
//   - TokenIssuer: issues and verifies RS256 caller tokens
//   - ChallengeStore: single-use login nonces redeemed with an Ethereum signature
//   - JWKSHandler: publishes the token verification key
//   - RequireCaller: Gin middleware enforcing a Bearer caller token
//   - RequireAdminSecret: Gin middleware gating privileged routes behind a bcrypt secret
package identity
