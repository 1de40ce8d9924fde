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

// PassportStore persists passports in PostgreSQL.
type PassportStore struct {
	db *sql.DB
}

func NewPassportStore(db *sql.DB) *PassportStore {
	return &PassportStore{db: db}
}

func (s *PassportStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const passportColumns = `
	id, user_id, passport_number, surname, given_names, nationality,
	date_of_birth, gender, issuing_country, date_of_issue, date_of_expiry,
	photo_ref, is_primary, created_at, updated_at
`

// Save upserts a passport record keyed by ID.
func (s *PassportStore) Save(ctx context.Context, p *models.Passport) error {
	query := `
		INSERT INTO passports (` + passportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			passport_number = EXCLUDED.passport_number,
			surname         = EXCLUDED.surname,
			given_names     = EXCLUDED.given_names,
			nationality     = EXCLUDED.nationality,
			date_of_birth   = EXCLUDED.date_of_birth,
			gender          = EXCLUDED.gender,
			issuing_country = EXCLUDED.issuing_country,
			date_of_issue   = EXCLUDED.date_of_issue,
			date_of_expiry  = EXCLUDED.date_of_expiry,
			photo_ref       = EXCLUDED.photo_ref,
			is_primary      = EXCLUDED.is_primary,
			updated_at      = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		p.ID.String(), p.UserID.String(), p.PassportNumber, p.Surname,
		p.GivenNames, p.Nationality, p.DateOfBirth, p.Gender,
		p.IssuingCountry, p.DateOfIssue, p.DateOfExpiry, p.PhotoRef,
		p.IsPrimary, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save passport: %w", err)
	}
	return nil
}

func (s *PassportStore) FindByID(ctx context.Context, passportID id.PassportID) (*models.Passport, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+passportColumns+` FROM passports WHERE id = $1`, passportID.String())
	return scanPassport(row)
}

func (s *PassportStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Passport, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+passportColumns+` FROM passports WHERE user_id = $1 ORDER BY created_at`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list passports: %w", err)
	}
	defer rows.Close()

	var out []*models.Passport
	for rows.Next() {
		p, err := scanPassport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list passports: %w", err)
	}
	return out, nil
}

func (s *PassportStore) FindPrimary(ctx context.Context, userID id.UserID) (*models.Passport, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+passportColumns+` FROM passports WHERE user_id = $1 AND is_primary`, userID.String())
	return scanPassport(row)
}

// SetPrimary demotes the current primary and promotes the target in one
// transaction, so readers can never observe zero or two primaries.
func (s *PassportStore) SetPrimary(ctx context.Context, userID id.UserID, passportID id.PassportID) error {
	return tx.Execute(ctx, s.db, func(ctx context.Context) error {
		q := s.q(ctx)
		if _, err := q.ExecContext(ctx,
			`UPDATE passports SET is_primary = FALSE WHERE user_id = $1 AND is_primary`,
			userID.String()); err != nil {
			return fmt.Errorf("demote primary passport: %w", err)
		}
		res, err := q.ExecContext(ctx,
			`UPDATE passports SET is_primary = TRUE WHERE id = $1 AND user_id = $2`,
			passportID.String(), userID.String())
		if err != nil {
			return fmt.Errorf("promote primary passport: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("promote primary passport: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("promote primary passport: %w", sentinel.ErrNotFound)
		}
		return nil
	})
}

func (s *PassportStore) Delete(ctx context.Context, passportID id.PassportID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM passports WHERE id = $1`, passportID.String())
	if err != nil {
		return fmt.Errorf("delete passport: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete passport: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PassportStore) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM passports WHERE user_id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete passports for user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassport(row rowScanner) (*models.Passport, error) {
	var (
		p         models.Passport
		rawID     string
		rawUserID string
	)
	err := row.Scan(
		&rawID, &rawUserID, &p.PassportNumber, &p.Surname, &p.GivenNames,
		&p.Nationality, &p.DateOfBirth, &p.Gender, &p.IssuingCountry,
		&p.DateOfIssue, &p.DateOfExpiry, &p.PhotoRef, &p.IsPrimary,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan passport: %w", err)
	}
	if p.ID, err = id.ParsePassportID(rawID); err != nil {
		return nil, fmt.Errorf("scan passport: %w: %w", sentinel.ErrCorrupted, err)
	}
	if p.UserID, err = id.ParseUserID(rawUserID); err != nil {
		return nil, fmt.Errorf("scan passport: %w: %w", sentinel.ErrCorrupted, err)
	}
	return &p, nil
}
