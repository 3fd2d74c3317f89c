package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/keyregistry/internal/credential"
	"go.uber.org/zap"
)

// PostgresStore persists slot histories to the key_records table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Append implements Store.
// A transaction-scoped advisory lock keyed on the slot serialises concurrent
// appends to the same slot; appends to other slots take different locks.
func (s *PostgresStore) Append(ctx context.Context, slot SlotKey, value string, setBy common.Address) (*Record, error) {
	tokenID := credential.FormatTokenID(slot.TokenID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", slot.String(),
	); err != nil {
		return nil, fmt.Errorf("acquire slot lock: %w", err)
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(idx) + 1, 0) FROM key_records
		 WHERE token_id = $1::numeric AND name = $2`,
		tokenID, slot.Name,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("read slot tail: %w", err)
	}

	rec := &Record{
		Index: next,
		Value: value,
		SetBy: setBy,
		SetAt: time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO key_records (token_id, name, idx, value, set_by, set_at)
		 VALUES ($1::numeric, $2, $3, $4, $5, $6)`,
		tokenID, slot.Name, rec.Index, rec.Value, rec.SetBy.Hex(), rec.SetAt,
	); err != nil {
		return nil, fmt.Errorf("insert key record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit key tx: %w", err)
	}

	s.logger.Debug("key record appended",
		zap.String("token_id", tokenID),
		zap.String("name", slot.Name),
		zap.Int("idx", rec.Index),
	)
	return rec, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec   Record
		setBy string
	)
	if err := row.Scan(&rec.Index, &rec.Value, &setBy, &rec.SetAt); err != nil {
		return nil, err
	}
	rec.SetBy = common.HexToAddress(setBy)
	return &rec, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, slot SlotKey, index int) (*Record, error) {
	if index >= 0 {
		rec, err := scanRecord(s.pool.QueryRow(ctx,
			`SELECT idx, value, set_by, set_at FROM key_records
			 WHERE token_id = $1::numeric AND name = $2 AND idx = $3`,
			credential.FormatTokenID(slot.TokenID), slot.Name, index,
		))
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get key record: %w", err)
		}
	}

	n, err := s.Len(ctx, slot)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("index %d of %d: %w", index, n, ErrIndexOutOfRange)
}

// Latest implements Store.
func (s *PostgresStore) Latest(ctx context.Context, slot SlotKey) (*Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT idx, value, set_by, set_at FROM key_records
		 WHERE token_id = $1::numeric AND name = $2
		 ORDER BY idx DESC LIMIT 1`,
		credential.FormatTokenID(slot.TokenID), slot.Name,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest key record: %w", err)
	}
	return rec, nil
}

// History implements Store.
func (s *PostgresStore) History(ctx context.Context, slot SlotKey) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, value, set_by, set_at FROM key_records
		 WHERE token_id = $1::numeric AND name = $2
		 ORDER BY idx ASC`,
		credential.FormatTokenID(slot.TokenID), slot.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("query key history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Len implements Store.
func (s *PostgresStore) Len(ctx context.Context, slot SlotKey) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM key_records WHERE token_id = $1::numeric AND name = $2`,
		credential.FormatTokenID(slot.TokenID), slot.Name,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count key records: %w", err)
	}
	return n, nil
}

// Names implements Store.
func (s *PostgresStore) Names(ctx context.Context, tokenID credential.TokenID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name FROM key_records WHERE token_id = $1::numeric
		 GROUP BY name ORDER BY name COLLATE "C"`,
		credential.FormatTokenID(tokenID),
	)
	if err != nil {
		return nil, fmt.Errorf("query slot names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan slot name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
