package domain

import "encoding/json"

// Business is one Google Maps listing as returned by the provider, narrowed to
// the columns we store. Nil pointers and empty nested values are absent and are
// never written.
type Business struct {
	PlaceID string // required, unique

	Query         *string
	Name          *string
	NameForEmails *string
	GoogleID      *string
	Kgmid         *string
	FullAddress   *string
	Borough       *string
	Street        *string
	PostalCode    *string
	AreaService   *bool
	CountryCode   *string
	Country       *string
	City          *string
	USState       *string
	State         *string
	PlusCode      *string
	Latitude      *float64
	Longitude     *float64
	H3            *string
	TimeZone      *string
	PopularTimes  Nested
	Site          *string
	Phone         *string
	Type          *string
	Logo          *string
	Description   *string

	TypicalTimeSpent *string
	LocatedIn        *string
	LocatedGoogleID  *string
	Category         *string
	Subtypes         *string
	Posts            Nested
	ReviewsTags      StringList
	Rating           *float64
	ReviewsCount     *int64
	PhotosCount      *int64
	CID              *string
	ReviewsLink      *string
	ReviewsID        *string
	Photo            *string
	StreetView       *string

	WorkingHoursOldFormat *string
	WorkingHours          Hours
	OtherHours            Nested
	BusinessStatus        *string
	About                 Nested
	Range                 *string

	ReviewsPerScore  Nested
	ReviewsPerScore1 *int64
	ReviewsPerScore2 *int64
	ReviewsPerScore3 *int64
	ReviewsPerScore4 *int64
	ReviewsPerScore5 *int64

	ReservationLinks       Nested
	BookingAppointmentLink *string
	MenuLink               *string
	OrderLinks             Nested
	OwnerID                *string
	Verified               *bool
	OwnerTitle             *string
	OwnerLink              *string
	LocationLink           *string
	LocationReviewsLink    *string
}

// Hours maps a weekday to its opening ranges, e.g. "Monday" -> ["9AM-5PM"].
type Hours map[string][]string

// StringList is a flat list of strings (photo urls, ids, tags).
type StringList []string

// Questions holds the per-aspect answers attached to a review ("Food" -> "5").
type Questions map[string]string

// Nested is a provider structure we keep verbatim; it is already valid JSON.
type Nested json.RawMessage

// Empty reports whether n carries nothing worth writing.
func (n Nested) Empty() bool {
	switch string(n) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}

// BusinessView is the read model served by the API.
type BusinessView struct {
	PlaceID      string   `db:"place_id" json:"place_id"`
	Name         *string  `db:"name" json:"name,omitempty"`
	FullAddress  *string  `db:"full_address" json:"full_address,omitempty"`
	City         *string  `db:"city" json:"city,omitempty"`
	Country      *string  `db:"country" json:"country,omitempty"`
	Latitude     *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64 `db:"longitude" json:"longitude,omitempty"`
	Category     *string  `db:"category" json:"category,omitempty"`
	Site         *string  `db:"site" json:"site,omitempty"`
	Phone        *string  `db:"phone" json:"phone,omitempty"`
	Rating       *float64 `db:"rating" json:"rating,omitempty"`
	ReviewsCount *int64   `db:"reviews_count" json:"reviews_count,omitempty"`
}
