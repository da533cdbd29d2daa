package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
)

// -----------------------------------------------------------------------------
// Clarifications
// -----------------------------------------------------------------------------

const clarificationColumns = `id, run_id, claim_id, stage_index, type, priority, title, description,
	options, default_value, status, created_at, expires_at, response_data, responder_id,
	responded_at, response_time_seconds`

// priorityOrder sorts the most urgent requests first, then the oldest.
const priorityOrder = ` ORDER BY CASE priority
	WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END,
	created_at`

// CreateClarification implements store.ClarificationStore.
func (db *DB) CreateClarification(ctx context.Context, req *types.ClarificationRequest) error {
	options, err := marshalJSON(req.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	defaultValue, err := marshalJSON(req.DefaultValue)
	if err != nil {
		return fmt.Errorf("failed to marshal default value: %w", err)
	}
	responseData, err := marshalJSON(req.ResponseData)
	if err != nil {
		return fmt.Errorf("failed to marshal response data: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO clarifications (`+clarificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		req.ID, req.RunID, req.ClaimID, req.StageIndex, req.Type, req.Priority, req.Title, req.Description,
		options, defaultValue, req.Status, req.CreatedAt, req.ExpiresAt, responseData, req.ResponderID,
		req.RespondedAt, req.ResponseTimeSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to create clarification: %w", err)
	}
	return nil
}

// GetClarification implements store.ClarificationStore.
func (db *DB) GetClarification(ctx context.Context, id uuid.UUID) (*types.ClarificationRequest, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+clarificationColumns+` FROM clarifications WHERE id = $1`, id)
	req, err := scanClarification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clarification: %w", err)
	}
	return req, nil
}

// ListClarifications implements store.ClarificationStore.
func (db *DB) ListClarifications(ctx context.Context, filter store.ClarificationFilter) ([]types.ClarificationRequest, error) {
	query := `SELECT ` + clarificationColumns + ` FROM clarifications WHERE TRUE`
	args := []any{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.RunID != nil {
		query += fmt.Sprintf(" AND run_id = $%d", argPos)
		args = append(args, *filter.RunID)
		argPos++
	}
	if filter.ClaimID != nil {
		query += fmt.Sprintf(" AND claim_id = $%d", argPos)
		args = append(args, *filter.ClaimID)
		argPos++
	}
	if filter.Priority != "" {
		query += fmt.Sprintf(" AND priority = $%d", argPos)
		args = append(args, filter.Priority)
	}
	query += priorityOrder

	return db.queryClarifications(ctx, query, args...)
}

// TransitionClarification implements store.ClarificationStore. The status
// check and the write happen in one statement.
func (db *DB) TransitionClarification(ctx context.Context, from string, next *types.ClarificationRequest) (bool, error) {
	responseData, err := marshalJSON(next.ResponseData)
	if err != nil {
		return false, fmt.Errorf("failed to marshal response data: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE clarifications
		 SET status = $3, response_data = $4, responder_id = $5, responded_at = $6, response_time_seconds = $7
		 WHERE id = $1 AND status = $2`,
		next.ID, from, next.Status, responseData, next.ResponderID, next.RespondedAt, next.ResponseTimeSeconds,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition clarification: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clarifications WHERE id = $1)`, next.ID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check clarification: %w", err)
	}
	if !exists {
		return false, &types.NotFoundError{Kind: "clarification", ID: next.ID.String()}
	}
	return false, nil
}

// ListExpiredClarifications implements store.ClarificationStore.
func (db *DB) ListExpiredClarifications(ctx context.Context, now time.Time) ([]types.ClarificationRequest, error) {
	return db.queryClarifications(ctx,
		`SELECT `+clarificationColumns+` FROM clarifications
		 WHERE status = $1 AND expires_at <= $2`+priorityOrder,
		types.ClarificationPending, now)
}

func (db *DB) queryClarifications(ctx context.Context, query string, args ...any) ([]types.ClarificationRequest, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clarifications: %w", err)
	}
	defer rows.Close()

	out := []types.ClarificationRequest{}
	for rows.Next() {
		req, err := scanClarification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clarification: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func scanClarification(row pgx.Row) (*types.ClarificationRequest, error) {
	var c types.ClarificationRequest
	var options, defaultValue, responseData []byte
	if err := row.Scan(&c.ID, &c.RunID, &c.ClaimID, &c.StageIndex, &c.Type, &c.Priority, &c.Title, &c.Description,
		&options, &defaultValue, &c.Status, &c.CreatedAt, &c.ExpiresAt, &responseData, &c.ResponderID,
		&c.RespondedAt, &c.ResponseTimeSeconds); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(options, &c.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	if err := unmarshalJSON(defaultValue, &c.DefaultValue); err != nil {
		return nil, fmt.Errorf("failed to decode default value: %w", err)
	}
	if err := unmarshalJSON(responseData, &c.ResponseData); err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}
