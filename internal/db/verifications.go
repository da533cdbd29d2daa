package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/claim-detective/internal/types"
)

// -----------------------------------------------------------------------------
// Verifications
// -----------------------------------------------------------------------------

// CreateVerification implements store.VerificationStore.
func (db *DB) CreateVerification(ctx context.Context, v *types.Verification) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO verifications (id, claim_id, verifier_id, verdict, confidence, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.ClaimID, v.VerifierID, v.Verdict, v.Confidence, v.SubmittedAt,
	)
	if isUniqueViolation(err, constraintVerifier) {
		var existing uuid.UUID
		if qerr := db.pool.QueryRow(ctx,
			`SELECT id FROM verifications WHERE claim_id = $1 AND verifier_id = $2`,
			v.ClaimID, v.VerifierID,
		).Scan(&existing); qerr != nil {
			return fmt.Errorf("failed to look up duplicate verification: %w", qerr)
		}
		return &types.DuplicateVerificationError{ClaimID: v.ClaimID, VerifierID: v.VerifierID, ExistingID: existing}
	}
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	return nil
}

// ListVerifications implements store.VerificationStore.
func (db *DB) ListVerifications(ctx context.Context, claimID uuid.UUID) ([]types.Verification, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, claim_id, verifier_id, verdict, confidence, submitted_at
		 FROM verifications WHERE claim_id = $1
		 ORDER BY submitted_at, id`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	defer rows.Close()

	out := []types.Verification{}
	for rows.Next() {
		var v types.Verification
		if err := rows.Scan(&v.ID, &v.ClaimID, &v.VerifierID, &v.Verdict, &v.Confidence, &v.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		v.SubmittedAt = v.SubmittedAt.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Scores
// -----------------------------------------------------------------------------

// PutScore implements store.ScoreStore. The precedence rule of
// types.ReliabilityScore.Supersedes is applied by the WHERE clause of the
// upsert, so a pipeline write never lands over a consensus score.
func (db *DB) PutScore(ctx context.Context, score *types.ReliabilityScore) (bool, error) {
	factors, err := marshalJSON(score.Factors)
	if err != nil {
		return false, fmt.Errorf("failed to marshal factors: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`INSERT INTO reliability_scores (claim_id, value, source, factors, justification, run_id, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (claim_id) DO UPDATE
		 SET value = EXCLUDED.value, source = EXCLUDED.source, factors = EXCLUDED.factors,
		     justification = EXCLUDED.justification, run_id = EXCLUDED.run_id, computed_at = EXCLUDED.computed_at
		 WHERE EXCLUDED.source = $8 OR reliability_scores.source <> $8`,
		score.ClaimID, score.Value, score.Source, factors, score.Justification, score.RunID, score.ComputedAt,
		types.ScoreSourceConsensus,
	)
	if err != nil {
		return false, fmt.Errorf("failed to put score: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetScore implements store.ScoreStore.
func (db *DB) GetScore(ctx context.Context, claimID uuid.UUID) (*types.ReliabilityScore, error) {
	var s types.ReliabilityScore
	var factors []byte
	err := db.pool.QueryRow(ctx,
		`SELECT claim_id, value, source, factors, justification, run_id, computed_at
		 FROM reliability_scores WHERE claim_id = $1`, claimID,
	).Scan(&s.ClaimID, &s.Value, &s.Source, &factors, &s.Justification, &s.RunID, &s.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	if err := unmarshalJSON(factors, &s.Factors); err != nil {
		return nil, fmt.Errorf("failed to decode factors: %w", err)
	}
	s.ComputedAt = s.ComputedAt.UTC()
	return &s, nil
}
