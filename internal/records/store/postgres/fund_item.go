package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tripsecretary/internal/records/models"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
	"tripsecretary/pkg/platform/tx"
)

// FundItemStore persists proof-of-funds items in PostgreSQL.
type FundItemStore struct {
	db *sql.DB
}

func NewFundItemStore(db *sql.DB) *FundItemStore {
	return &FundItemStore{db: db}
}

func (s *FundItemStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const fundItemColumns = `
	id, user_id, fund_type, amount, currency, details, photo_ref,
	created_at, updated_at
`

func (s *FundItemStore) Save(ctx context.Context, f *models.FundItem) error {
	query := `
		INSERT INTO fund_items (` + fundItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			fund_type  = EXCLUDED.fund_type,
			amount     = EXCLUDED.amount,
			currency   = EXCLUDED.currency,
			details    = EXCLUDED.details,
			photo_ref  = EXCLUDED.photo_ref,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		f.ID.String(), f.UserID.String(), string(f.Type), f.Amount,
		f.Currency, f.Details, f.PhotoRef, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save fund item: %w", err)
	}
	return nil
}

func (s *FundItemStore) FindByID(ctx context.Context, fundItemID id.FundItemID) (*models.FundItem, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+fundItemColumns+` FROM fund_items WHERE id = $1`, fundItemID.String())
	return scanFundItem(row)
}

func (s *FundItemStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.FundItem, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+fundItemColumns+` FROM fund_items WHERE user_id = $1 ORDER BY created_at`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list fund items: %w", err)
	}
	defer rows.Close()

	var out []*models.FundItem
	for rows.Next() {
		f, err := scanFundItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fund items: %w", err)
	}
	return out, nil
}

func (s *FundItemStore) Delete(ctx context.Context, fundItemID id.FundItemID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM fund_items WHERE id = $1`, fundItemID.String())
	if err != nil {
		return fmt.Errorf("delete fund item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fund item: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *FundItemStore) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM fund_items WHERE user_id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete fund items for user: %w", err)
	}
	return nil
}

func scanFundItem(row rowScanner) (*models.FundItem, error) {
	var (
		f         models.FundItem
		rawID     string
		rawUserID string
		rawType   string
	)
	err := row.Scan(
		&rawID, &rawUserID, &rawType, &f.Amount, &f.Currency,
		&f.Details, &f.PhotoRef, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan fund item: %w", err)
	}
	if f.ID, err = id.ParseFundItemID(rawID); err != nil {
		return nil, fmt.Errorf("scan fund item: %w: %w", sentinel.ErrCorrupted, err)
	}
	if f.UserID, err = id.ParseUserID(rawUserID); err != nil {
		return nil, fmt.Errorf("scan fund item: %w: %w", sentinel.ErrCorrupted, err)
	}
	if f.Type, err = id.ParseFundType(rawType); err != nil {
		return nil, fmt.Errorf("scan fund item: %w: %w", sentinel.ErrCorrupted, err)
	}
	return &f, nil
}
