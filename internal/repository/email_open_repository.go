package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

type EmailOpenRepositoryInterface interface {
	// RecordEmailOpen stores open unless the prospect already has an open
	// less than window before open.At. It reports whether the open was stored.
	RecordEmailOpen(ctx context.Context, open model.EmailOpen, window time.Duration) (bool, error)
}

const emailOpenedAction = "Email opened"

func (r *ProspectRepository) RecordEmailOpen(ctx context.Context, open model.EmailOpen, window time.Duration) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin email open: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE prospects
        SET email_opens=email_opens+1, last_email_opened_at=$2, updated_at=NOW()
        WHERE id=$1 AND (last_email_opened_at IS NULL OR last_email_opened_at <= $3)
    `, open.ProspectID, open.At, open.At.Add(-window))
	if err != nil {
		return false, fmt.Errorf("record open for %s: %w", open.ProspectID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record open for %s: %w", open.ProspectID, err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM prospects WHERE id=$1)`, open.ProspectID).Scan(&exists); err != nil {
			return false, fmt.Errorf("check prospect %s: %w", open.ProspectID, err)
		}
		if !exists {
			return false, appErrors.NewProspectNotFound(open.ProspectID)
		}
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO email_opens (id, prospect_id, tracking_id, user_agent, opened_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), open.ProspectID, open.TrackingID, open.UserAgent, open.At,
	)
	if err != nil {
		return false, fmt.Errorf("insert open for %s: %w", open.ProspectID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO prospect_history (id, prospect_id, at, action, actor_id) VALUES ($1, $2, $3, $4, '')`,
		uuid.NewString(), open.ProspectID, open.At, emailOpenedAction,
	)
	if err != nil {
		return false, fmt.Errorf("append history for %s: %w", open.ProspectID, err)
	}
	if err := r.pruneHistory(ctx, tx, open.ProspectID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

var _ EmailOpenRepositoryInterface = (*ProspectRepository)(nil)
