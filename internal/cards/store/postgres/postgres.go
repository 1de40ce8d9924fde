// Package postgres implements the card store on PostgreSQL. A partial unique
// index on (entry_info_id, card_type) WHERE status = 'success' AND NOT
// is_superseded backs the at-most-one-authoritative-success invariant.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tripsecretary/internal/cards/models"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
	"tripsecretary/pkg/platform/tx"
)

type CardStore struct {
	db *sql.DB
}

func NewCardStore(db *sql.DB) *CardStore {
	return &CardStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *CardStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// WithinTx runs fn with both supersede and insert joined in one transaction.
func (s *CardStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Execute(ctx, s.db, fn)
}

const cardColumns = `
	id, entry_info_id, user_id, card_type, destination_id,
	arrival_card_number, qr_ref, pdf_ref, submitted_at, submission_method,
	status, api_response, processing_time_ms, retry_count, error_details,
	is_superseded, superseded_at, superseded_by, superseded_reason, version
`

func (s *CardStore) Save(ctx context.Context, card *models.DigitalArrivalCard) error {
	query := `
		INSERT INTO arrival_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			arrival_card_number = EXCLUDED.arrival_card_number,
			qr_ref              = EXCLUDED.qr_ref,
			pdf_ref             = EXCLUDED.pdf_ref,
			status              = EXCLUDED.status,
			api_response        = EXCLUDED.api_response,
			processing_time_ms  = EXCLUDED.processing_time_ms,
			retry_count         = EXCLUDED.retry_count,
			error_details       = EXCLUDED.error_details,
			is_superseded       = EXCLUDED.is_superseded,
			superseded_at       = EXCLUDED.superseded_at,
			superseded_by       = EXCLUDED.superseded_by,
			superseded_reason   = EXCLUDED.superseded_reason,
			version             = EXCLUDED.version
	`
	var supersededBy *string
	if !card.SupersededBy.IsNil() {
		v := card.SupersededBy.String()
		supersededBy = &v
	}
	_, err := s.q(ctx).ExecContext(ctx, query,
		card.ID.String(), card.EntryInfoID.String(), card.UserID.String(),
		string(card.CardType), card.DestinationID,
		card.ArrivalCardNumber, card.QRRef, card.PDFRef, card.SubmittedAt,
		string(card.SubmissionMethod), string(card.Status), card.APIResponse,
		card.ProcessingTimeMs, card.RetryCount, card.ErrorDetails,
		card.IsSuperseded, card.SupersededAt, supersededBy,
		card.SupersededReason, card.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("save arrival card: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save arrival card: %w", err)
	}
	return nil
}

func (s *CardStore) FindByID(ctx context.Context, cardID id.CardID) (*models.DigitalArrivalCard, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM arrival_cards WHERE id = $1`, cardID.String())
	return scanCard(row)
}

func (s *CardStore) GetLatestSuccessful(ctx context.Context, entryInfoID id.EntryInfoID, cardType id.CardType) (*models.DigitalArrivalCard, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+cardColumns+` FROM arrival_cards
		WHERE entry_info_id = $1 AND card_type = $2
		  AND status = 'success' AND NOT is_superseded
		ORDER BY submitted_at DESC
		LIMIT 1
	`, entryInfoID.String(), string(cardType))
	return scanCard(row)
}

func (s *CardStore) ListByEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) ([]*models.DigitalArrivalCard, error) {
	return s.list(ctx, `entry_info_id = $1`, entryInfoID.String())
}

func (s *CardStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.DigitalArrivalCard, error) {
	return s.list(ctx, `user_id = $1`, userID.String())
}

func (s *CardStore) list(ctx context.Context, where string, arg any) ([]*models.DigitalArrivalCard, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+cardColumns+` FROM arrival_cards WHERE `+where+` ORDER BY submitted_at ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list arrival cards: %w", err)
	}
	defer rows.Close()

	var out []*models.DigitalArrivalCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list arrival cards: %w", err)
	}
	return out, nil
}

func (s *CardStore) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM arrival_cards WHERE user_id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete arrival cards for user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.DigitalArrivalCard, error) {
	var (
		c               models.DigitalArrivalCard
		rawID           string
		rawEntryInfoID  string
		rawUserID       string
		rawCardType     string
		rawMethod       string
		rawStatus       string
		supersededAt    sql.NullTime
		rawSupersededBy sql.NullString
	)
	err := row.Scan(
		&rawID, &rawEntryInfoID, &rawUserID, &rawCardType, &c.DestinationID,
		&c.ArrivalCardNumber, &c.QRRef, &c.PDFRef, &c.SubmittedAt, &rawMethod,
		&rawStatus, &c.APIResponse, &c.ProcessingTimeMs, &c.RetryCount,
		&c.ErrorDetails, &c.IsSuperseded, &supersededAt, &rawSupersededBy,
		&c.SupersededReason, &c.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan arrival card: %w", err)
	}
	if c.ID, err = id.ParseCardID(rawID); err != nil {
		return nil, fmt.Errorf("scan arrival card: %w: %w", sentinel.ErrCorrupted, err)
	}
	if c.EntryInfoID, err = id.ParseEntryInfoID(rawEntryInfoID); err != nil {
		return nil, fmt.Errorf("scan arrival card: %w: %w", sentinel.ErrCorrupted, err)
	}
	if c.UserID, err = id.ParseUserID(rawUserID); err != nil {
		return nil, fmt.Errorf("scan arrival card: %w: %w", sentinel.ErrCorrupted, err)
	}
	if c.CardType, err = id.ParseCardType(rawCardType); err != nil {
		return nil, fmt.Errorf("scan arrival card: %w: %w", sentinel.ErrCorrupted, err)
	}
	c.SubmissionMethod = id.SubmissionMethod(rawMethod)
	c.Status = id.CardStatus(rawStatus)
	if supersededAt.Valid {
		t := supersededAt.Time
		c.SupersededAt = &t
	}
	if rawSupersededBy.Valid && rawSupersededBy.String != "" {
		if c.SupersededBy, err = id.ParseCardID(rawSupersededBy.String); err != nil {
			return nil, fmt.Errorf("scan arrival card: %w: %w", sentinel.ErrCorrupted, err)
		}
	}
	return &c, nil
}
