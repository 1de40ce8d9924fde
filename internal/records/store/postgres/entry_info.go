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

// EntryInfoStore persists entry aggregates. Documents and display status are
// stored as versioned JSON text columns and decoded through the model so
// schema migration happens on read.
type EntryInfoStore struct {
	db *sql.DB
}

func NewEntryInfoStore(db *sql.DB) *EntryInfoStore {
	return &EntryInfoStore{db: db}
}

func (s *EntryInfoStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const entryInfoColumns = `
	id, user_id, destination_id, documents, display_status, created_at, updated_at
`

func (s *EntryInfoStore) Save(ctx context.Context, e *models.EntryInfo) error {
	docs, err := e.EncodeDocuments()
	if err != nil {
		return fmt.Errorf("save entry info: %w", err)
	}
	status, err := e.EncodeDisplayStatus()
	if err != nil {
		return fmt.Errorf("save entry info: %w", err)
	}
	query := `
		INSERT INTO entry_info (` + entryInfoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, destination_id) DO UPDATE SET
			documents      = EXCLUDED.documents,
			display_status = EXCLUDED.display_status,
			updated_at     = EXCLUDED.updated_at
	`
	if _, err := s.q(ctx).ExecContext(ctx, query,
		e.ID.String(), e.UserID.String(), e.DestinationID, docs, status,
		e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save entry info: %w", err)
	}
	return nil
}

func (s *EntryInfoStore) FindByID(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+entryInfoColumns+` FROM entry_info WHERE id = $1`, entryInfoID.String())
	return scanEntryInfo(row)
}

func (s *EntryInfoStore) FindByUserAndDestination(ctx context.Context, userID id.UserID, destinationID string) (*models.EntryInfo, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+entryInfoColumns+` FROM entry_info WHERE user_id = $1 AND destination_id = $2`,
		userID.String(), destinationID)
	return scanEntryInfo(row)
}

func (s *EntryInfoStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.EntryInfo, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+entryInfoColumns+` FROM entry_info WHERE user_id = $1 ORDER BY created_at`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list entry info: %w", err)
	}
	defer rows.Close()

	var out []*models.EntryInfo
	for rows.Next() {
		e, err := scanEntryInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entry info: %w", err)
	}
	return out, nil
}

func (s *EntryInfoStore) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM entry_info WHERE user_id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete entry info for user: %w", err)
	}
	return nil
}

func scanEntryInfo(row rowScanner) (*models.EntryInfo, error) {
	var (
		e         models.EntryInfo
		rawID     string
		rawUserID string
		docs      string
		status    string
	)
	err := row.Scan(&rawID, &rawUserID, &e.DestinationID, &docs, &status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan entry info: %w", err)
	}
	if e.ID, err = id.ParseEntryInfoID(rawID); err != nil {
		return nil, fmt.Errorf("scan entry info: %w: %w", sentinel.ErrCorrupted, err)
	}
	if e.UserID, err = id.ParseUserID(rawUserID); err != nil {
		return nil, fmt.Errorf("scan entry info: %w: %w", sentinel.ErrCorrupted, err)
	}
	if err := e.DecodeDocuments(docs); err != nil {
		return nil, err
	}
	if err := e.DecodeDisplayStatus(status); err != nil {
		return nil, err
	}
	return &e, nil
}
