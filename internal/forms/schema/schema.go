// Package schema defines the per-form field schemas that the interaction
// tracker, field-state manager and completion metrics operate over. Screens
// never hard-code field lists; they look the schema up by form ID.
package schema

import "strings"

// Form IDs for the travel-entry flow. One logical form per screen group.
const (
	FormPassport     = "passport"
	FormPersonalInfo = "personal_info"
	FormFunds        = "funds"
	FormTravelInfo   = "travel_info"
)

// FieldType drives parsing and sentinel handling for a field.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeDate    FieldType = "date"
	FieldTypeSelect  FieldType = "select"
	FieldTypeCountry FieldType = "country"
	FieldTypeNumber  FieldType = "number"
	FieldTypePhoto   FieldType = "photo"
)

// Field describes one form field.
//
// DefaultSentinel is the programmatic initial value a screen renders before
// the user touches the field. A candidate value equal to the sentinel is not
// evidence of user intent and must not be persisted on its own.
type Field struct {
	Name            string
	Type            FieldType
	Section         string
	Required        bool
	DefaultSentinel string
}

// Schema is the ordered field list for one form.
type Schema struct {
	FormID string
	Fields []Field

	byName map[string]int
}

func newSchema(formID string, fields ...Field) Schema {
	s := Schema{FormID: formID, Fields: fields, byName: make(map[string]int, len(fields))}
	for i, f := range fields {
		s.byName[f.Name] = i
	}
	return s
}

// Field returns the named field definition.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Has reports whether the schema defines the field.
func (s Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// IsSentinel reports whether value is the untouched programmatic default for
// the named field. Unknown fields have no sentinel.
func (s Schema) IsSentinel(name, value string) bool {
	f, ok := s.Field(name)
	if !ok || f.DefaultSentinel == "" {
		return false
	}
	return strings.TrimSpace(value) == f.DefaultSentinel
}

// Sections returns the distinct section keys in declaration order.
func (s Schema) Sections() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range s.Fields {
		if !seen[f.Section] {
			seen[f.Section] = true
			out = append(out, f.Section)
		}
	}
	return out
}

// SectionFields returns the fields belonging to one section, in order.
func (s Schema) SectionFields(section string) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Section == section {
			out = append(out, f)
		}
	}
	return out
}

var registry = map[string]Schema{
	FormPassport: newSchema(FormPassport,
		Field{Name: "passport_number", Type: FieldTypeText, Section: "document", Required: true},
		Field{Name: "surname", Type: FieldTypeText, Section: "identity", Required: true},
		Field{Name: "given_names", Type: FieldTypeText, Section: "identity", Required: true},
		Field{Name: "nationality", Type: FieldTypeCountry, Section: "identity", Required: true},
		Field{Name: "date_of_birth", Type: FieldTypeDate, Section: "identity", Required: true},
		Field{Name: "gender", Type: FieldTypeSelect, Section: "identity", Required: true, DefaultSentinel: "UNSPECIFIED"},
		Field{Name: "issuing_country", Type: FieldTypeCountry, Section: "document", Required: true},
		Field{Name: "date_of_issue", Type: FieldTypeDate, Section: "document", Required: false},
		Field{Name: "date_of_expiry", Type: FieldTypeDate, Section: "document", Required: true},
		Field{Name: "photo_ref", Type: FieldTypePhoto, Section: "document", Required: false},
	),
	FormPersonalInfo: newSchema(FormPersonalInfo,
		Field{Name: "email", Type: FieldTypeText, Section: "contact", Required: true},
		Field{Name: "phone", Type: FieldTypeText, Section: "contact", Required: true},
		Field{Name: "phone_country_code", Type: FieldTypeSelect, Section: "contact", Required: false, DefaultSentinel: "+86"},
		Field{Name: "home_address", Type: FieldTypeText, Section: "contact", Required: false},
		Field{Name: "occupation", Type: FieldTypeText, Section: "work", Required: true},
		Field{Name: "employer", Type: FieldTypeText, Section: "work", Required: false},
		Field{Name: "annual_income_band", Type: FieldTypeSelect, Section: "work", Required: false, DefaultSentinel: "PREFER_NOT_TO_SAY"},
	),
	FormFunds: newSchema(FormFunds,
		Field{Name: "type", Type: FieldTypeSelect, Section: "funds", Required: true, DefaultSentinel: "OTHER"},
		Field{Name: "amount", Type: FieldTypeNumber, Section: "funds", Required: false},
		Field{Name: "currency", Type: FieldTypeSelect, Section: "funds", Required: false, DefaultSentinel: "CNY"},
		Field{Name: "details", Type: FieldTypeText, Section: "funds", Required: false},
		Field{Name: "photo_ref", Type: FieldTypePhoto, Section: "funds", Required: false},
	),
	FormTravelInfo: newSchema(FormTravelInfo,
		Field{Name: "flight_number", Type: FieldTypeText, Section: "flight", Required: true},
		Field{Name: "arrival_date", Type: FieldTypeDate, Section: "flight", Required: true},
		Field{Name: "departure_date", Type: FieldTypeDate, Section: "flight", Required: false},
		Field{Name: "accommodation_name", Type: FieldTypeText, Section: "stay", Required: true},
		Field{Name: "accommodation_address", Type: FieldTypeText, Section: "stay", Required: false},
		Field{Name: "purpose_of_visit", Type: FieldTypeSelect, Section: "stay", Required: false, DefaultSentinel: "TOURISM"},
	),
}

// ForForm returns the registered schema for a form ID.
func ForForm(formID string) (Schema, bool) {
	s, ok := registry[formID]
	return s, ok
}

// FormIDs returns all registered form IDs.
func FormIDs() []string {
	return []string{FormPassport, FormPersonalInfo, FormFunds, FormTravelInfo}
}
