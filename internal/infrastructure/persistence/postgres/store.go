package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
	"github.com/debugmaster-hub/progression-engine/pkg/circuitbreaker"
	"github.com/jackc/pgx/v5"
)

// Schema of the single state table. Values are JSONB so the state stays
// inspectable with plain SQL.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS engine_state (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store implements kv.Store on a PostgreSQL table.
type Store struct {
	conn    *Connection
	breaker *circuitbreaker.CircuitBreaker
}

// NewStore creates the table if needed and wraps the connection in a
// circuit breaker. While the breaker is open every operation fails fast
// with a persistence error; the engine's in-memory state stays intact.
func NewStore(ctx context.Context, conn *Connection) (*Store, error) {
	if _, err := conn.Pool().Exec(ctx, createTableSQL); err != nil {
		return nil, err
	}

	breaker := circuitbreaker.New("postgres-store",
		circuitbreaker.WithFailureThreshold(3),
		circuitbreaker.WithTimeout(15*time.Second),
		circuitbreaker.WithIsFailure(func(err error) bool {
			// Context cancellation is the caller's doing, not a database fault.
			return !errors.Is(err, context.Canceled)
		}),
	)

	return &Store{conn: conn, breaker: breaker}, nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		row := s.conn.Pool().QueryRow(ctx,
			`SELECT value FROM engine_state WHERE key = $1`, key)
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return kv.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// List implements kv.Store.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		rows, err := s.conn.Pool().Query(ctx,
			`SELECT key, value FROM engine_state WHERE key LIKE $1 || '%'`, prefix)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			var raw []byte
			if err := rows.Scan(&key, &raw); err != nil {
				return err
			}
			out[key] = raw
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transact implements kv.Store. All staged operations run in one
// database transaction.
func (s *Store) Transact(ctx context.Context, fn func(tx kv.Tx) error) error {
	batch := &kv.Batch{}
	if err := fn(batch); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
			for _, op := range batch.Ops() {
				var err error
				switch op.Kind {
				case kv.OpPut:
					_, err = tx.Exec(ctx, `
						INSERT INTO engine_state (key, value, updated_at)
						VALUES ($1, $2, now())
						ON CONFLICT (key) DO UPDATE
						SET value = EXCLUDED.value, updated_at = now()`,
						op.Key, op.Value)
				case kv.OpDelete:
					_, err = tx.Exec(ctx,
						`DELETE FROM engine_state WHERE key = $1`, op.Key)
				case kv.OpDeletePrefix:
					_, err = tx.Exec(ctx,
						`DELETE FROM engine_state WHERE key LIKE $1 || '%'`, op.Key)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Close implements kv.Store.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}
