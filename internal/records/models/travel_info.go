package models

import (
	"time"

	id "tripsecretary/pkg/domain"
)

// TravelInfo captures flight and accommodation details for one destination.
type TravelInfo struct {
	ID                   id.TravelInfoID `json:"id"`
	UserID               id.UserID       `json:"user_id"`
	DestinationID        string          `json:"destination_id"`
	FlightNumber         string          `json:"flight_number"`
	ArrivalDate          string          `json:"arrival_date"`
	DepartureDate        string          `json:"departure_date"`
	AccommodationName    string          `json:"accommodation_name"`
	AccommodationAddress string          `json:"accommodation_address"`
	PurposeOfVisit       string          `json:"purpose_of_visit"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func NewTravelInfo(userID id.UserID, destinationID string, now time.Time) *TravelInfo {
	return &TravelInfo{
		ID:            id.NewTravelInfoID(),
		UserID:        userID,
		DestinationID: destinationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

var travelInfoSetters = map[string]func(*TravelInfo, string){
	"flight_number":         func(t *TravelInfo, v string) { t.FlightNumber = v },
	"arrival_date":          func(t *TravelInfo, v string) { t.ArrivalDate = v },
	"departure_date":        func(t *TravelInfo, v string) { t.DepartureDate = v },
	"accommodation_name":    func(t *TravelInfo, v string) { t.AccommodationName = v },
	"accommodation_address": func(t *TravelInfo, v string) { t.AccommodationAddress = v },
	"purpose_of_visit":      func(t *TravelInfo, v string) { t.PurposeOfVisit = v },
}

// MergeUpdates applies a filtered save payload; see Passport.MergeUpdates for
// the shared contract.
func (t *TravelInfo) MergeUpdates(updates Fields, opts MergeOptions) error {
	applySetters(t, updates, travelInfoSetters)
	t.UpdatedAt = opts.now()
	if opts.SkipValidation {
		return nil
	}
	return t.Validate()
}

func (t *TravelInfo) Validate() error {
	if !validDate(t.ArrivalDate) {
		return validationErrorf("arrival_date %q is not a valid date", t.ArrivalDate)
	}
	if !validDate(t.DepartureDate) {
		return validationErrorf("departure_date %q is not a valid date", t.DepartureDate)
	}
	return nil
}

func (t *TravelInfo) FieldsMap() map[string]string {
	return map[string]string{
		"flight_number":         t.FlightNumber,
		"arrival_date":          t.ArrivalDate,
		"departure_date":        t.DepartureDate,
		"accommodation_name":    t.AccommodationName,
		"accommodation_address": t.AccommodationAddress,
		"purpose_of_visit":      t.PurposeOfVisit,
	}
}
