// Package types defines the shared domain types for the matching engine:
// profiles, preference sets, interaction records, and scoring results.
//
// Profiles, preferences, and interactions are owned by the persistence layer;
// the engine treats them as read-only input. Scoring results are created fresh
// per ranking request and discarded with the response.
package types

import "time"

// Profile represents a member profile as surfaced to the matching engine.
// All collection-valued fields are typed slices; parsing of any serialized
// representation happens at the storage boundary, never in the engine
// (malformed stored data surfaces here as an empty slice).
type Profile struct {
	// Core identification
	ID        string    `json:"id"`         // Unique member identifier
	CreatedAt time.Time `json:"created_at"` // Account creation timestamp

	// Demographics
	DateOfBirth     time.Time `json:"date_of_birth"`       // Used to derive age
	HeightCM        int       `json:"height_cm,omitempty"` // Height in centimeters (0 = unknown)
	Location        string    `json:"location,omitempty"`  // Location bucket (city/region key)
	CountryOfOrigin string    `json:"country_of_origin,omitempty"`
	Latitude        float64   `json:"latitude,omitempty"` // Optional coordinates for proximity
	Longitude       float64   `json:"longitude,omitempty"`

	// Cultural and personal attributes
	Religion              string   `json:"religion,omitempty"`
	Ethnicity             string   `json:"ethnicity,omitempty"`
	SecondaryTribe        string   `json:"secondary_tribe,omitempty"`
	BodyType              string   `json:"body_type,omitempty"`
	EducationLevel        string   `json:"education_level,omitempty"`
	EducationInstitutions []string `json:"education_institutions,omitempty"`
	HasChildren           string   `json:"has_children,omitempty"`   // "yes", "no", ""
	WantsChildren         string   `json:"wants_children,omitempty"` // "yes", "no", "maybe", ""
	RelationshipGoal      string   `json:"relationship_goal,omitempty"`
	Profession            string   `json:"profession,omitempty"`

	// Free text and tags
	Bio       string   `json:"bio,omitempty"`
	Interests []string `json:"interests,omitempty"`

	// Activity signals
	LastActiveAt time.Time `json:"last_active_at"`
	Online       bool      `json:"online"`

	// Visibility (consumed by the hard filter, not by scoring)
	Hidden bool `json:"hidden,omitempty"`
}

// Age returns the profile's age in whole years at the given instant.
// Returns 0 when DateOfBirth is unset.
func (p *Profile) Age(now time.Time) int {
	if p.DateOfBirth.IsZero() {
		return 0
	}
	years := now.Year() - p.DateOfBirth.Year()
	if now.YearDay() < p.DateOfBirth.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
