package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

type ProspectRepositoryInterface interface {
	ListByStatus(ctx context.Context, status model.ProspectStatus) ([]*model.Prospect, error)
	GetByID(ctx context.Context, id string) (*model.Prospect, error)
	// ApplyTransition writes t only if the stored status and step index still
	// match t's expectations, and appends t's history in the same transaction.
	ApplyTransition(ctx context.Context, t *model.Transition) error
	History(ctx context.Context, prospectID string, limit int) ([]model.HistoryEntry, error)
}

type ProspectRepository struct {
	DB *sql.DB
	// HistoryRetention keeps at most this many history entries per prospect.
	// Zero disables pruning.
	HistoryRetention int
}

const prospectColumns = `id, first_name, last_name, company, title, industry, email, linkedin, phone,
    campaign_id, current_step_index, next_action_at, status, owner_id, owner_name,
    assigned_sender_email, assigned_sender_name, enrolled_at, last_contacted_at, replied_at, completed_at`

// prospectReadColumns adds the columns maintained by open tracking, which
// Upsert never writes.
const prospectReadColumns = prospectColumns + `, email_opens, last_email_opened_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProspect(row rowScanner) (*model.Prospect, error) {
	var p model.Prospect
	var status string
	var nextAction, enrolled, contacted, replied, completed, opened sql.NullTime
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Company, &p.Title, &p.Industry,
		&p.Contact.Email, &p.Contact.LinkedIn, &p.Contact.Phone,
		&p.CampaignID, &p.CurrentStepIndex, &nextAction, &status, &p.OwnerID, &p.OwnerName,
		&p.AssignedSenderEmail, &p.AssignedSenderName, &enrolled, &contacted, &replied, &completed,
		&p.EmailOpens, &opened,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.ProspectStatus(status)
	p.NextActionAt = timePtr(nextAction)
	p.EnrolledAt = timePtr(enrolled)
	p.LastContactedAt = timePtr(contacted)
	p.RepliedAt = timePtr(replied)
	p.CompletedAt = timePtr(completed)
	p.LastEmailOpenedAt = timePtr(opened)
	return &p, nil
}

func (r *ProspectRepository) ListByStatus(ctx context.Context, status model.ProspectStatus) ([]*model.Prospect, error) {
	query := `SELECT ` + prospectReadColumns + ` FROM prospects WHERE status=$1 ORDER BY next_action_at NULLS FIRST, id`
	rows, err := r.DB.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list prospects: %w", err)
	}
	defer rows.Close()

	prospects := []*model.Prospect{}
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prospect: %w", err)
		}
		prospects = append(prospects, p)
	}
	return prospects, rows.Err()
}

func (r *ProspectRepository) GetByID(ctx context.Context, id string) (*model.Prospect, error) {
	query := `SELECT ` + prospectReadColumns + ` FROM prospects WHERE id=$1`
	p, err := scanProspect(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewProspectNotFound(id)
		}
		return nil, fmt.Errorf("get prospect %s: %w", id, err)
	}
	return p, nil
}

func (r *ProspectRepository) ApplyTransition(ctx context.Context, t *model.Transition) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE prospects
        SET status=$1, current_step_index=$2, campaign_id=$3, next_action_at=$4,
            last_contacted_at=COALESCE($5, last_contacted_at),
            enrolled_at=COALESCE($6, enrolled_at),
            replied_at=COALESCE($7, replied_at),
            completed_at=COALESCE($8, completed_at),
            updated_at=NOW()
        WHERE id=$9 AND status=$10 AND current_step_index=$11
    `
	res, err := tx.ExecContext(ctx, query,
		string(t.NewStatus), t.NewStepIndex, t.CampaignID, nullTime(t.NextActionAt),
		nullTime(t.LastContactedAt), nullTime(t.EnrolledAt), nullTime(t.RepliedAt), nullTime(t.CompletedAt),
		t.ProspectID, string(t.ExpectedStatus), t.ExpectedStepIndex,
	)
	if err != nil {
		return fmt.Errorf("update prospect %s: %w", t.ProspectID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update prospect %s: %w", t.ProspectID, err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM prospects WHERE id=$1)`, t.ProspectID).Scan(&exists); err != nil {
			return fmt.Errorf("check prospect %s: %w", t.ProspectID, err)
		}
		if !exists {
			return appErrors.NewProspectNotFound(t.ProspectID)
		}
		return appErrors.ErrStaleProspect
	}

	for i := range t.History {
		h := &t.History[i]
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO prospect_history (id, prospect_id, at, action, actor_id) VALUES ($1, $2, $3, $4, $5)`,
			h.ID, t.ProspectID, h.At, h.Action, h.ActorID,
		)
		if err != nil {
			return fmt.Errorf("append history for %s: %w", t.ProspectID, err)
		}
	}

	if len(t.History) > 0 {
		if err := r.pruneHistory(ctx, tx, t.ProspectID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *ProspectRepository) pruneHistory(ctx context.Context, tx *sql.Tx, prospectID string) error {
	if r.HistoryRetention <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
        DELETE FROM prospect_history
        WHERE prospect_id=$1 AND id IN (
            SELECT id FROM prospect_history WHERE prospect_id=$1
            ORDER BY at DESC, id DESC OFFSET $2
        )`, prospectID, r.HistoryRetention)
	if err != nil {
		return fmt.Errorf("prune history for %s: %w", prospectID, err)
	}
	return nil
}

// History returns the newest entries first.
func (r *ProspectRepository) History(ctx context.Context, prospectID string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, at, action, actor_id FROM prospect_history
        WHERE prospect_id=$1 ORDER BY at DESC, id DESC LIMIT $2`, prospectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.ID, &h.At, &h.Action, &h.ActorID); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// Upsert inserts or replaces a prospect row. Used by the seeder.
func (r *ProspectRepository) Upsert(ctx context.Context, p *model.Prospect) error {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	query := `
        INSERT INTO prospects (` + prospectColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        ON CONFLICT (id) DO UPDATE SET
            first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name, company=EXCLUDED.company,
            title=EXCLUDED.title, industry=EXCLUDED.industry, email=EXCLUDED.email,
            linkedin=EXCLUDED.linkedin, phone=EXCLUDED.phone, campaign_id=EXCLUDED.campaign_id,
            current_step_index=EXCLUDED.current_step_index, next_action_at=EXCLUDED.next_action_at,
            status=EXCLUDED.status, owner_id=EXCLUDED.owner_id, owner_name=EXCLUDED.owner_name,
            assigned_sender_email=EXCLUDED.assigned_sender_email,
            assigned_sender_name=EXCLUDED.assigned_sender_name,
            updated_at=NOW()
    `
	_, err := r.DB.ExecContext(ctx, query,
		p.ID, p.FirstName, p.LastName, p.Company, p.Title, p.Industry,
		strings.ToLower(strings.TrimSpace(p.Contact.Email)), p.Contact.LinkedIn, p.Contact.Phone,
		p.CampaignID, p.CurrentStepIndex, nullTime(p.NextActionAt), string(p.Status), p.OwnerID, p.OwnerName,
		p.AssignedSenderEmail, p.AssignedSenderName,
		nullTime(p.EnrolledAt), nullTime(p.LastContactedAt), nullTime(p.RepliedAt), nullTime(p.CompletedAt),
	)
	return err
}

var _ ProspectRepositoryInterface = (*ProspectRepository)(nil)
