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

// TravelInfoStore persists per-destination travel details. One record per
// (user_id, destination_id); Save upserts against that pair.
type TravelInfoStore struct {
	db *sql.DB
}

func NewTravelInfoStore(db *sql.DB) *TravelInfoStore {
	return &TravelInfoStore{db: db}
}

func (s *TravelInfoStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const travelInfoColumns = `
	id, user_id, destination_id, flight_number, arrival_date, departure_date,
	accommodation_name, accommodation_address, purpose_of_visit,
	created_at, updated_at
`

func (s *TravelInfoStore) Save(ctx context.Context, t *models.TravelInfo) error {
	query := `
		INSERT INTO travel_info (` + travelInfoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, destination_id) DO UPDATE SET
			flight_number         = EXCLUDED.flight_number,
			arrival_date          = EXCLUDED.arrival_date,
			departure_date        = EXCLUDED.departure_date,
			accommodation_name    = EXCLUDED.accommodation_name,
			accommodation_address = EXCLUDED.accommodation_address,
			purpose_of_visit      = EXCLUDED.purpose_of_visit,
			updated_at            = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		t.ID.String(), t.UserID.String(), t.DestinationID, t.FlightNumber,
		t.ArrivalDate, t.DepartureDate, t.AccommodationName,
		t.AccommodationAddress, t.PurposeOfVisit, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save travel info: %w", err)
	}
	return nil
}

func (s *TravelInfoStore) FindByUserAndDestination(ctx context.Context, userID id.UserID, destinationID string) (*models.TravelInfo, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+travelInfoColumns+` FROM travel_info WHERE user_id = $1 AND destination_id = $2`,
		userID.String(), destinationID)
	return scanTravelInfo(row)
}

func (s *TravelInfoStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.TravelInfo, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+travelInfoColumns+` FROM travel_info WHERE user_id = $1 ORDER BY created_at`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list travel info: %w", err)
	}
	defer rows.Close()

	var out []*models.TravelInfo
	for rows.Next() {
		t, err := scanTravelInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list travel info: %w", err)
	}
	return out, nil
}

func (s *TravelInfoStore) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM travel_info WHERE user_id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete travel info for user: %w", err)
	}
	return nil
}

func scanTravelInfo(row rowScanner) (*models.TravelInfo, error) {
	var (
		t         models.TravelInfo
		rawID     string
		rawUserID string
	)
	err := row.Scan(
		&rawID, &rawUserID, &t.DestinationID, &t.FlightNumber, &t.ArrivalDate,
		&t.DepartureDate, &t.AccommodationName, &t.AccommodationAddress,
		&t.PurposeOfVisit, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan travel info: %w", err)
	}
	if t.ID, err = id.ParseTravelInfoID(rawID); err != nil {
		return nil, fmt.Errorf("scan travel info: %w: %w", sentinel.ErrCorrupted, err)
	}
	if t.UserID, err = id.ParseUserID(rawUserID); err != nil {
		return nil, fmt.Errorf("scan travel info: %w: %w", sentinel.ErrCorrupted, err)
	}
	return &t, nil
}
