package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/claim-detective/internal/types"
)

// -----------------------------------------------------------------------------
// Claims
// -----------------------------------------------------------------------------

// CreateClaim implements store.ClaimStore.
func (db *DB) CreateClaim(ctx context.Context, claim *types.Claim) error {
	urls, err := marshalJSON(claim.SourceURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal source urls: %w", err)
	}
	if urls == nil {
		urls = []byte("[]")
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO claims (id, text, source_urls, fingerprint, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		claim.ID, claim.Text, urls, claim.Fingerprint, claim.SubmittedAt,
	)
	if isUniqueViolation(err, constraintClaimFingerprint) {
		var existing uuid.UUID
		if qerr := db.pool.QueryRow(ctx,
			`SELECT id FROM claims WHERE fingerprint = $1`, claim.Fingerprint,
		).Scan(&existing); qerr != nil {
			return fmt.Errorf("failed to look up duplicate claim: %w", qerr)
		}
		return &types.DuplicateClaimError{ExistingID: existing}
	}
	if err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// GetClaim implements store.ClaimStore.
func (db *DB) GetClaim(ctx context.Context, id uuid.UUID) (*types.Claim, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, text, source_urls, fingerprint, submitted_at
		 FROM claims WHERE id = $1`, id)
	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// ListClaims implements store.ClaimStore.
func (db *DB) ListClaims(ctx context.Context, before time.Time, limit int) ([]types.Claim, error) {
	query := `SELECT id, text, source_urls, fingerprint, submitted_at
	          FROM claims
	          WHERE $1::timestamptz IS NULL OR submitted_at < $1
	          ORDER BY submitted_at DESC`
	var bound *time.Time
	if !before.IsZero() {
		bound = &before
	}
	args := []any{bound}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	claims := []types.Claim{}
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, *claim)
	}
	return claims, rows.Err()
}

func scanClaim(row pgx.Row) (*types.Claim, error) {
	var c types.Claim
	var urls []byte
	if err := row.Scan(&c.ID, &c.Text, &urls, &c.Fingerprint, &c.SubmittedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(urls, &c.SourceURLs); err != nil {
		return nil, fmt.Errorf("failed to decode source urls: %w", err)
	}
	if c.SourceURLs == nil {
		c.SourceURLs = []string{}
	}
	c.SubmittedAt = c.SubmittedAt.UTC()
	return &c, nil
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

const runColumns = `id, claim_id, state, stages, error, created_at, updated_at, completed_at`

// CreateRun implements store.RunStore.
func (db *DB) CreateRun(ctx context.Context, run *types.Run) error {
	stages, err := marshalJSON(run.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.ClaimID, run.State, stages, run.Error, run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if isUniqueViolation(err, constraintActiveRun) {
		var existing uuid.UUID
		if qerr := db.pool.QueryRow(ctx,
			`SELECT id FROM runs
			 WHERE claim_id = $1 AND state IN ('created', 'running', 'awaiting_clarification')`,
			run.ClaimID,
		).Scan(&existing); qerr != nil {
			return fmt.Errorf("failed to look up active run: %w", qerr)
		}
		return &types.ActiveRunError{ClaimID: run.ClaimID, ExistingID: existing}
	}
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SaveRun implements store.RunStore.
func (db *DB) SaveRun(ctx context.Context, run *types.Run) error {
	stages, err := marshalJSON(run.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET state = $2, stages = $3, error = $4, updated_at = $5, completed_at = $6
		 WHERE id = $1`,
		run.ID, run.State, stages, run.Error, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.NotFoundError{Kind: "run", ID: run.ID.String()}
	}
	return nil
}

// GetRun implements store.RunStore.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun implements store.RunStore.
func (db *DB) LatestRun(ctx context.Context, claimID uuid.UUID) (*types.Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE claim_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, claimID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRunsByState implements store.RunStore.
func (db *DB) ListRunsByState(ctx context.Context, states ...string) ([]types.Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE state = ANY($1)
		 ORDER BY created_at`, states)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []types.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*types.Run, error) {
	var r types.Run
	var stages []byte
	if err := row.Scan(&r.ID, &r.ClaimID, &r.State, &stages, &r.Error, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(stages, &r.Stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}
