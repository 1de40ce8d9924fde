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

// PersonalInfoStore persists the per-user personal info singleton. The
// user_id column carries a unique constraint; Save upserts against it.
type PersonalInfoStore struct {
	db *sql.DB
}

func NewPersonalInfoStore(db *sql.DB) *PersonalInfoStore {
	return &PersonalInfoStore{db: db}
}

func (s *PersonalInfoStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const personalInfoColumns = `
	id, user_id, email, phone, phone_country_code, home_address,
	occupation, employer, annual_income_band, created_at, updated_at
`

func (s *PersonalInfoStore) Save(ctx context.Context, p *models.PersonalInfo) error {
	query := `
		INSERT INTO personal_info (` + personalInfoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			email              = EXCLUDED.email,
			phone              = EXCLUDED.phone,
			phone_country_code = EXCLUDED.phone_country_code,
			home_address       = EXCLUDED.home_address,
			occupation         = EXCLUDED.occupation,
			employer           = EXCLUDED.employer,
			annual_income_band = EXCLUDED.annual_income_band,
			updated_at         = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		p.ID.String(), p.UserID.String(), p.Email, p.Phone, p.PhoneCountryCode,
		p.HomeAddress, p.Occupation, p.Employer, p.AnnualIncomeBand,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save personal info: %w", err)
	}
	return nil
}

func (s *PersonalInfoStore) FindByUser(ctx context.Context, userID id.UserID) (*models.PersonalInfo, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+personalInfoColumns+` FROM personal_info WHERE user_id = $1`, userID.String())

	var (
		p         models.PersonalInfo
		rawID     string
		rawUserID string
	)
	err := row.Scan(
		&rawID, &rawUserID, &p.Email, &p.Phone, &p.PhoneCountryCode,
		&p.HomeAddress, &p.Occupation, &p.Employer, &p.AnnualIncomeBand,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan personal info: %w", err)
	}
	if p.ID, err = id.ParsePersonalInfoID(rawID); err != nil {
		return nil, fmt.Errorf("scan personal info: %w: %w", sentinel.ErrCorrupted, err)
	}
	if p.UserID, err = id.ParseUserID(rawUserID); err != nil {
		return nil, fmt.Errorf("scan personal info: %w: %w", sentinel.ErrCorrupted, err)
	}
	return &p, nil
}

func (s *PersonalInfoStore) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM personal_info WHERE user_id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete personal info for user: %w", err)
	}
	return nil
}
