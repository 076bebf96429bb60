package redeem

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// PostgresStore persists the ledger in PostgreSQL. Save upserts every record
// inside one transaction so a failed save leaves the previous state intact.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS bet_records (
		condition_id    TEXT NOT NULL,
		token_id        TEXT NOT NULL,
		market_label    TEXT NOT NULL,
		side            TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		redeemed        BOOLEAN NOT NULL DEFAULT FALSE,
		redeemed_at     TIMESTAMPTZ,
		redeemed_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		attempt_count   INTEGER NOT NULL DEFAULT 0,
		last_attempt_at TIMESTAMPTZ,
		last_error      TEXT NOT NULL DEFAULT '',
		note            TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (condition_id, token_id)
	)`

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err = db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("create bet_records table: %w", err)
	}

	cfg.Logger.Info("postgres-ledger-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{db: db, logger: cfg.Logger}, nil
}

// newPostgresStoreWithDB wires an existing handle; used by tests.
func newPostgresStoreWithDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Load reads every record.
func (s *PostgresStore) Load(ctx context.Context) ([]BetRecord, error) {
	query := `
		SELECT condition_id, token_id, market_label, side, created_at,
		       redeemed, redeemed_at, redeemed_amount,
		       attempt_count, last_attempt_at, last_error, note
		FROM bet_records
		ORDER BY created_at, condition_id, token_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query bet records: %w", err)
	}
	defer rows.Close()

	var records []BetRecord
	for rows.Next() {
		var (
			rec           BetRecord
			side          string
			redeemedAt    sql.NullTime
			lastAttemptAt sql.NullTime
		)

		err = rows.Scan(
			&rec.ConditionID, &rec.TokenID, &rec.MarketLabel, &side, &rec.CreatedAt,
			&rec.Redeemed, &redeemedAt, &rec.RedeemedAmount,
			&rec.AttemptCount, &lastAttemptAt, &rec.LastError, &rec.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bet record: %w", err)
		}

		rec.Side = sideFromString(side)
		if redeemedAt.Valid {
			t := redeemedAt.Time
			rec.RedeemedAt = &t
		}
		if lastAttemptAt.Valid {
			t := lastAttemptAt.Time
			rec.LastAttemptAt = &t
		}

		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bet records: %w", err)
	}

	return records, nil
}

// Save upserts the full record set in one transaction.
func (s *PostgresStore) Save(ctx context.Context, records []BetRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO bet_records (
			condition_id, token_id, market_label, side, created_at,
			redeemed, redeemed_at, redeemed_amount,
			attempt_count, last_attempt_at, last_error, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (condition_id, token_id) DO UPDATE SET
			redeemed        = EXCLUDED.redeemed,
			redeemed_at     = EXCLUDED.redeemed_at,
			redeemed_amount = EXCLUDED.redeemed_amount,
			attempt_count   = EXCLUDED.attempt_count,
			last_attempt_at = EXCLUDED.last_attempt_at,
			last_error      = EXCLUDED.last_error,
			note            = EXCLUDED.note`

	for i := range records {
		rec := &records[i]

		var redeemedAt, lastAttemptAt interface{}
		if rec.RedeemedAt != nil {
			redeemedAt = *rec.RedeemedAt
		}
		if rec.LastAttemptAt != nil {
			lastAttemptAt = *rec.LastAttemptAt
		}

		_, err = tx.ExecContext(ctx, query,
			rec.ConditionID, rec.TokenID, rec.MarketLabel, rec.Side.String(), rec.CreatedAt,
			rec.Redeemed, redeemedAt, rec.RedeemedAmount,
			rec.AttemptCount, lastAttemptAt, rec.LastError, rec.Note,
		)
		if err != nil {
			return fmt.Errorf("upsert bet record %s: %w", rec.Key(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing-postgres-ledger")
	return s.db.Close()
}

func sideFromString(s string) types.Side {
	switch s {
	case "up":
		return types.SideUp
	case "down":
		return types.SideDown
	default:
		return types.SideUnset
	}
}
