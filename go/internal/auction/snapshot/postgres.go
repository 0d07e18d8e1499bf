package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/auctioneer/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS auction_snapshots (
	auction_id TEXT PRIMARY KEY,
	version    INT NOT NULL,
	payload    JSONB NOT NULL,
	backup     JSONB,
	saved_at   TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps the snapshot as a JSONB row keyed by auction id. The
// previous payload is kept in the backup column.
type PostgresStore struct {
	pool      *pgxpool.Pool
	auctionID string
}

// NewPostgresStore returns a store for auctionID.
func NewPostgresStore(pool *pgxpool.Pool, auctionID string) *PostgresStore {
	return &PostgresStore{pool: pool, auctionID: auctionID}
}

// Migrate creates the snapshot table if needed.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create auction_snapshots: %w", err)
	}
	return nil
}

// Save upserts the snapshot row, moving the old payload to backup.
func (p *PostgresStore) Save(ctx context.Context, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return sqlutil.Run(ctx, p.pool, func(tx pgx.Tx) error {
		var prev []byte
		err := tx.QueryRow(ctx,
			`SELECT payload FROM auction_snapshots WHERE auction_id = $1 FOR UPDATE`,
			p.auctionID,
		).Scan(&prev)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock snapshot row: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO auction_snapshots (auction_id, version, payload, backup, saved_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (auction_id) DO UPDATE
			SET version = EXCLUDED.version,
			    payload = EXCLUDED.payload,
			    backup = EXCLUDED.backup,
			    saved_at = EXCLUDED.saved_at`,
			p.auctionID, s.Version, payload, prev, sqlutil.ToTimestamptz(s.SavedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}
		return nil
	})
}

// Load reads the snapshot row, falling back to the backup column when the
// payload cannot be decoded.
func (p *PostgresStore) Load(ctx context.Context) (Snapshot, error) {
	var (
		payload []byte
		backup  []byte
		savedAt pgtype.Timestamptz
	)
	err := p.pool.QueryRow(ctx,
		`SELECT payload, backup, saved_at FROM auction_snapshots WHERE auction_id = $1`,
		p.auctionID,
	).Scan(&payload, &backup, &savedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	return decodeRow(p.auctionID, payload, backup, sqlutil.FromTimestamptz(savedAt))
}

func decodeRow(auctionID string, payload, backup []byte, savedAt time.Time) (Snapshot, error) {
	s, err := decodePayload(payload)
	if err == nil {
		if s.SavedAt.IsZero() {
			s.SavedAt = savedAt
		}
		return s, nil
	}
	if len(backup) == 0 {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	log.Warn().Err(err).Str("auction_id", auctionID).Msg("snapshot payload unreadable, trying backup")
	b, berr := decodePayload(backup)
	if berr != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w (backup: %v)", err, berr)
	}
	return b, nil
}

func decodePayload(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	if s.Version > CurrentVersion {
		return Snapshot{}, fmt.Errorf("unsupported version %d", s.Version)
	}
	return s, nil
}
