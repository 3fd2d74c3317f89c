package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresAuthority persists credential ownership to PostgreSQL.
// It implements the Issuer interface.
type PostgresAuthority struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresAuthority creates a PostgresAuthority backed by the given connection pool.
func NewPostgresAuthority(pool *pgxpool.Pool, logger *zap.Logger) *PostgresAuthority {
	return &PostgresAuthority{pool: pool, logger: logger}
}

// Mint implements Issuer. Token ids come from the credential_token_seq sequence.
func (a *PostgresAuthority) Mint(ctx context.Context, to common.Address) (TokenID, error) {
	if to == (common.Address{}) {
		return TokenID{}, ErrZeroAddress
	}

	var idStr string
	err := a.pool.QueryRow(ctx,
		`INSERT INTO credentials (token_id, owner, minted_at)
		 VALUES (nextval('credential_token_seq'), $1, $2)
		 RETURNING token_id::text`,
		to.Hex(), time.Now().UTC(),
	).Scan(&idStr)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return TokenID{}, ErrAlreadyIssued
		}
		return TokenID{}, fmt.Errorf("mint credential: %w", err)
	}

	id, err := ParseTokenID(idStr)
	if err != nil {
		return TokenID{}, err
	}
	a.logger.Debug("credential minted",
		zap.String("token_id", idStr),
		zap.String("owner", to.Hex()),
	)
	return id, nil
}

// OwnerOf implements Authority.
func (a *PostgresAuthority) OwnerOf(ctx context.Context, tokenID TokenID) (common.Address, error) {
	var owner string
	err := a.pool.QueryRow(ctx,
		`SELECT owner FROM credentials WHERE token_id = $1::numeric`,
		FormatTokenID(tokenID),
	).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Address{}, ErrNoSuchToken
		}
		return common.Address{}, fmt.Errorf("owner of %s: %w", FormatTokenID(tokenID), err)
	}
	return common.HexToAddress(owner), nil
}

// TokenOf implements Issuer.
func (a *PostgresAuthority) TokenOf(ctx context.Context, addr common.Address) (TokenID, error) {
	var idStr string
	err := a.pool.QueryRow(ctx,
		`SELECT token_id::text FROM credentials WHERE owner = $1`, addr.Hex(),
	).Scan(&idStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenID{}, ErrNoCredential
		}
		return TokenID{}, fmt.Errorf("token of %s: %w", addr.Hex(), err)
	}
	return ParseTokenID(idStr)
}

// IsApprovedOrOwner implements Authority. The check is a single query so the
// answer reflects one consistent snapshot of ownership and approvals.
func (a *PostgresAuthority) IsApprovedOrOwner(ctx context.Context, addr common.Address, tokenID TokenID) (bool, error) {
	return isApprovedOrOwner(ctx, a.pool, addr, tokenID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isApprovedOrOwner(ctx context.Context, q querier, addr common.Address, tokenID TokenID) (bool, error) {
	var allowed bool
	err := q.QueryRow(ctx,
		`SELECT c.owner = $2
		     OR COALESCE(c.approved = $2, false)
		     OR EXISTS (SELECT 1 FROM credential_operators o
		                WHERE o.owner = c.owner AND o.operator = $2)
		 FROM credentials c WHERE c.token_id = $1::numeric`,
		FormatTokenID(tokenID), addr.Hex(),
	).Scan(&allowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNoSuchToken
		}
		return false, fmt.Errorf("check approval for %s: %w", FormatTokenID(tokenID), err)
	}
	return allowed, nil
}

// Approve implements Issuer.
func (a *PostgresAuthority) Approve(ctx context.Context, caller, to common.Address, tokenID TokenID) error {
	var approved *string
	if to != (common.Address{}) {
		s := to.Hex()
		approved = &s
	}

	tag, err := a.pool.Exec(ctx,
		`UPDATE credentials c SET approved = $3
		 WHERE c.token_id = $1::numeric
		   AND (c.owner = $2 OR EXISTS (SELECT 1 FROM credential_operators o
		                                 WHERE o.owner = c.owner AND o.operator = $2))`,
		FormatTokenID(tokenID), caller.Hex(), approved,
	)
	if err != nil {
		return fmt.Errorf("approve %s: %w", FormatTokenID(tokenID), err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := a.OwnerOf(ctx, tokenID); err != nil {
			return err
		}
		return ErrNotApproved
	}
	return nil
}

// SetApprovalForAll implements Issuer.
func (a *PostgresAuthority) SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		return ErrZeroAddress
	}

	var err error
	if approved {
		_, err = a.pool.Exec(ctx,
			`INSERT INTO credential_operators (owner, operator) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			caller.Hex(), operator.Hex(),
		)
	} else {
		_, err = a.pool.Exec(ctx,
			`DELETE FROM credential_operators WHERE owner = $1 AND operator = $2`,
			caller.Hex(), operator.Hex(),
		)
	}
	if err != nil {
		return fmt.Errorf("set operator %s: %w", operator.Hex(), err)
	}
	return nil
}

// TransferFrom implements Issuer. The ownership check and the update run in
// one transaction with the credential row locked.
func (a *PostgresAuthority) TransferFrom(ctx context.Context, caller, from, to common.Address, tokenID TokenID) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var owner string
	if err := tx.QueryRow(ctx,
		`SELECT owner FROM credentials WHERE token_id = $1::numeric FOR UPDATE`,
		FormatTokenID(tokenID),
	).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoSuchToken
		}
		return fmt.Errorf("lock credential: %w", err)
	}

	ok, err := isApprovedOrOwner(ctx, tx, caller, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApproved
	}
	if common.HexToAddress(owner) != from {
		return ErrNotOwner
	}

	if _, err := tx.Exec(ctx,
		`UPDATE credentials SET owner = $2, approved = NULL WHERE token_id = $1::numeric`,
		FormatTokenID(tokenID), to.Hex(),
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyIssued
		}
		return fmt.Errorf("transfer credential: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}

	a.logger.Debug("credential transferred",
		zap.String("token_id", FormatTokenID(tokenID)),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
	)
	return nil
}
