// Package postgres implements the FactorStore on PostgreSQL, persisting the
// trained latent factor vectors so a process restart does not force a cold
// retrain. Vectors are stored in a pgvector column when the extension is
// available, with a JSON fallback column otherwise.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/duara-social/matchengine/internal/storage"
)

// FactorStore implements storage.FactorStore using PostgreSQL.
type FactorStore struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewFactorStore connects to PostgreSQL and ensures the schema exists. The
// pgvector extension is probed at startup; when absent, vectors persist in
// the JSON fallback column only.
func NewFactorStore(dsn string) (*FactorStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping: %w", err)
	}

	s := &FactorStore{db: db}
	s.pgvectorAvailable = probePgvector(db)
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// probePgvector checks whether the pgvector extension can be enabled.
func probePgvector(db *sql.DB) bool {
	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("WARNING: postgres: pgvector extension unavailable, falling back to JSON storage: %v", err)
		return false
	}
	return true
}

// ensureSchema creates the latent_factors table.
func (s *FactorStore) ensureSchema() error {
	vecColumn := ""
	if s.pgvectorAvailable {
		vecColumn = ", factors_vec vector"
	}
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS latent_factors (
			kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			factors JSONB NOT NULL,
			bias DOUBLE PRECISION NOT NULL DEFAULT 0
			%s,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (kind, entity_id)
		)
	`, vecColumn))
	if err != nil {
		return fmt.Errorf("postgres: failed to create latent_factors table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS latent_model_meta (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			global_bias DOUBLE PRECISION NOT NULL,
			trained_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("postgres: failed to create latent_model_meta table: %w", err)
	}
	return nil
}

// StoreFactors upserts the factor vector and bias for one entity.
func (s *FactorStore) StoreFactors(ctx context.Context, kind, entityID string, factors []float32, bias float64) error {
	if kind != "user" && kind != "item" {
		return fmt.Errorf("%w: kind must be \"user\" or \"item\"", storage.ErrInvalidInput)
	}
	if entityID == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	if len(factors) == 0 {
		return fmt.Errorf("%w: factor vector cannot be empty", storage.ErrInvalidInput)
	}

	encoded, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode factors: %w", err)
	}

	if s.pgvectorAvailable {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO latent_factors (kind, entity_id, factors, bias, factors_vec, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (kind, entity_id) DO UPDATE SET
				factors = excluded.factors,
				bias = excluded.bias,
				factors_vec = excluded.factors_vec,
				updated_at = NOW()
		`, kind, entityID, encoded, bias, pgvector.NewVector(factors))
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO latent_factors (kind, entity_id, factors, bias, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (kind, entity_id) DO UPDATE SET
				factors = excluded.factors,
				bias = excluded.bias,
				updated_at = NOW()
		`, kind, entityID, encoded, bias)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to store factors for %s/%s: %w", kind, entityID, err)
	}
	return nil
}

// LoadFactors returns all persisted factors of the given kind, keyed by
// entity ID.
func (s *FactorStore) LoadFactors(ctx context.Context, kind string) (map[string]storage.StoredFactors, error) {
	if kind != "user" && kind != "item" {
		return nil, fmt.Errorf("%w: kind must be \"user\" or \"item\"", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, factors, bias FROM latent_factors WHERE kind = $1
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load %s factors: %w", kind, err)
	}
	defer rows.Close()

	out := make(map[string]storage.StoredFactors)
	for rows.Next() {
		var entityID string
		var encoded []byte
		var bias float64
		if err := rows.Scan(&entityID, &encoded, &bias); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan factors: %w", err)
		}
		var factors []float32
		if err := json.Unmarshal(encoded, &factors); err != nil {
			log.Printf("WARNING: postgres: malformed factors for %s/%s, skipping: %v", kind, entityID, err)
			continue
		}
		out[entityID] = storage.StoredFactors{Factors: factors, Bias: bias}
	}
	return out, rows.Err()
}

// StoreModelMeta upserts the single model metadata row.
func (s *FactorStore) StoreModelMeta(ctx context.Context, globalBias float64, trainedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO latent_model_meta (id, global_bias, trained_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			global_bias = excluded.global_bias,
			trained_at = excluded.trained_at
	`, globalBias, trainedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to store model metadata: %w", err)
	}
	return nil
}

// LoadModelMeta returns the persisted model metadata, ok=false when no
// training run has been persisted yet.
func (s *FactorStore) LoadModelMeta(ctx context.Context) (float64, time.Time, bool, error) {
	var globalBias float64
	var trainedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT global_bias, trained_at FROM latent_model_meta WHERE id = 1
	`).Scan(&globalBias, &trainedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("postgres: failed to load model metadata: %w", err)
	}
	return globalBias, trainedAt, true, nil
}

// Close releases the database connection.
func (s *FactorStore) Close() error {
	return s.db.Close()
}
