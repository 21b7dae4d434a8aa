package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database, verifies connectivity and applies
// the embedded migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// migrate applies every embedded migration in file order. Statements are
// idempotent, so reapplying on startup is safe.
func (s *PostgresStore) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, entry := range entries {
		schema, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := s.db.Exec(string(schema)); err != nil {
			return fmt.Errorf("apply %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// SaveRun stores one run row. The config snapshot is serialized to JSONB.
func (s *PostgresStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	var config sql.NullString
	if run.Config != nil {
		encoded, err := json.Marshal(run.Config)
		if err != nil {
			return fmt.Errorf("encode config snapshot: %w", err)
		}
		config = sql.NullString{String: string(encoded), Valid: true}
	}

	query := `
		INSERT INTO runs (
			id, source, namespace, started_at, finished_at,
			analyzed, skipped, config
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Source, run.Namespace, run.StartedAt, run.FinishedAt,
		run.Analyzed, run.Skipped, config,
	)
	return err
}

// SaveRecommendation stores one recommendation row. Missing IDs and
// timestamps are assigned here, matching what the policy leaves unset.
func (s *PostgresStore) SaveRecommendation(ctx context.Context, rec *RecommendationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	rationale, err := json.Marshal(rec.Rationale)
	if err != nil {
		return fmt.Errorf("encode rationale: %w", err)
	}

	var runID sql.NullString
	if rec.RunID != "" {
		runID = sql.NullString{String: rec.RunID, Valid: true}
	}

	query := `
		INSERT INTO recommendations (
			id, run_id, workload, namespace, dimension,
			recommended_request, recommended_limit,
			current_request, current_limit,
			confidence, model_used, rationale, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, runID, rec.Workload, rec.Namespace, string(rec.Dimension),
		rec.RecommendedRequest, rec.RecommendedLimit,
		rec.CurrentRequest, rec.CurrentLimit,
		rec.Confidence, rec.ModelUsed, string(rationale), rec.CreatedAt,
	)
	return err
}

const recordColumns = `
	id, run_id, workload, namespace, dimension,
	recommended_request, recommended_limit,
	current_request, current_limit,
	confidence, model_used, rationale, created_at
`

// GetWorkloadHistory returns stored recommendations for one workload,
// newest first. The workload ID is "namespace/name".
func (s *PostgresStore) GetWorkloadHistory(ctx context.Context, workloadID string, limit int) ([]*RecommendationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM recommendations
		WHERE workload = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return s.queryRecords(ctx, query, workloadID, limit)
}

// ListRecommendations returns stored recommendations, newest first. An empty
// namespace lists across all namespaces.
func (s *PostgresStore) ListRecommendations(ctx context.Context, namespace string, limit int) ([]*RecommendationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM recommendations
		WHERE ($1 = '' OR namespace = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return s.queryRecords(ctx, query, namespace, limit)
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...any) ([]*RecommendationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*RecommendationRecord
	for rows.Next() {
		var rec RecommendationRecord
		var runID, modelUsed sql.NullString
		var dimension string
		var rationale []byte

		err := rows.Scan(
			&rec.ID, &runID, &rec.Workload, &rec.Namespace, &dimension,
			&rec.RecommendedRequest, &rec.RecommendedLimit,
			&rec.CurrentRequest, &rec.CurrentLimit,
			&rec.Confidence, &modelUsed, &rationale, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		rec.RunID = runID.String
		rec.ModelUsed = modelUsed.String
		rec.Dimension = models.ResourceDimension(dimension)
		if len(rationale) > 0 {
			if err := json.Unmarshal(rationale, &rec.Rationale); err != nil {
				return nil, fmt.Errorf("decode rationale for %s: %w", rec.ID, err)
			}
		}

		records = append(records, &rec)
	}
	return records, rows.Err()
}

// LogAction appends an entry to the audit trail.
func (s *PostgresStore) LogAction(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = "SUCCESS"
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_log (
			id, recommendation_id, action, status, actor, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.RecommendationID, entry.Action, entry.Status,
		entry.Actor, entry.Detail, entry.ExecutedAt,
	)
	return err
}

// GetAuditLog returns audit entries for one recommendation, newest first.
func (s *PostgresStore) GetAuditLog(ctx context.Context, recommendationID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, recommendation_id, action, status, actor, detail, created_at
		FROM audit_log
		WHERE recommendation_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, recommendationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var actor, detail sql.NullString

		err := rows.Scan(
			&entry.ID, &entry.RecommendationID, &entry.Action, &entry.Status,
			&actor, &detail, &entry.ExecutedAt,
		)
		if err != nil {
			return nil, err
		}

		entry.Actor = actor.String
		entry.Detail = detail.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
