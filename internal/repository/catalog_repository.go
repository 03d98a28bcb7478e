package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

// CatalogDocumentKey is the settings row holding the campaign catalog.
const CatalogDocumentKey = "outreach_campaigns"

// ErrCatalogNotFound means no custom catalog has been saved yet.
var ErrCatalogNotFound = errors.New("campaign catalog document not found")

type CatalogRepositoryInterface interface {
	Load(ctx context.Context) (*model.Catalog, error)
	// Save overwrites the whole document if its stored version still equals
	// c.Version, and bumps c.Version on success.
	Save(ctx context.Context, c *model.Catalog, updatedBy string) error
}

type CatalogRepository struct {
	DB *sql.DB
}

func (r *CatalogRepository) Load(ctx context.Context) (*model.Catalog, error) {
	var body []byte
	var c model.Catalog
	var updatedAt time.Time
	err := r.DB.QueryRowContext(ctx,
		`SELECT body, version, updated_at, updated_by FROM settings_documents WHERE key=$1`,
		CatalogDocumentKey,
	).Scan(&body, &c.Version, &updatedAt, &c.UpdatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCatalogNotFound
		}
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	campaigns := map[string]*model.Campaign{}
	if err := json.Unmarshal(body, &campaigns); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for id, camp := range campaigns {
		if camp.ID == "" {
			camp.ID = id
		}
	}
	c.Campaigns = campaigns
	c.UpdatedAt = &updatedAt
	return &c, nil
}

func (r *CatalogRepository) Save(ctx context.Context, c *model.Catalog, updatedBy string) error {
	body, err := json.Marshal(c.Campaigns)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	now := time.Now().UTC()
	var res sql.Result
	if c.Version == 0 {
		res, err = r.DB.ExecContext(ctx, `
            INSERT INTO settings_documents (key, body, version, updated_at, updated_by)
            VALUES ($1, $2, 1, $3, $4)
            ON CONFLICT (key) DO NOTHING`,
			CatalogDocumentKey, body, now, updatedBy)
	} else {
		res, err = r.DB.ExecContext(ctx, `
            UPDATE settings_documents
            SET body=$1, version=version+1, updated_at=$2, updated_by=$3
            WHERE key=$4 AND version=$5`,
			body, now, updatedBy, CatalogDocumentKey, c.Version)
	}
	if err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrCatalogConflict
	}

	c.Version++
	c.UpdatedAt = &now
	c.UpdatedBy = updatedBy
	c.BuiltIn = false
	return nil
}

var _ CatalogRepositoryInterface = (*CatalogRepository)(nil)
