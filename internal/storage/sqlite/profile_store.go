// Package sqlite implements the storage interfaces on SQLite via the pure-Go
// modernc.org/sqlite driver. It is the default backend for development and
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/duara-social/matchengine/internal/storage"
	"github.com/duara-social/matchengine/pkg/types"
)

// ProfileStore implements storage.ProfileStore and storage.InteractionSource
// using SQLite.
type ProfileStore struct {
	db *sql.DB
}

// NewProfileStore opens a SQLite database, configures WAL mode, and ensures
// the schema exists.
func NewProfileStore(dsn string) (*ProfileStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to configure database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &ProfileStore{db: db}, nil
}

// GetDB exposes the underlying connection for callers that need direct
// access (e.g. the stats handler).
func (s *ProfileStore) GetDB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

// GetProfile retrieves a profile by ID. Returns storage.ErrNotFound when the
// profile doesn't exist.
func (s *ProfileStore) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: profile ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, selectProfile+" WHERE id = ?", id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: profile %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get profile %s: %w", id, err)
	}
	return p, nil
}

// StoreProfile creates or updates a profile (upsert semantics). Used by data
// loaders and tests; the matching engine itself never writes profiles.
func (s *ProfileStore) StoreProfile(ctx context.Context, p *types.Profile) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: profile with ID is required", storage.ErrInvalidInput)
	}

	interests, err := json.Marshal(p.Interests)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode interests: %w", err)
	}
	institutions, err := json.Marshal(p.EducationInstitutions)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode institutions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (
			id, created_at, date_of_birth, height_cm, location, country_of_origin,
			latitude, longitude, religion, ethnicity, secondary_tribe, body_type,
			education_level, education_institutions, has_children, wants_children,
			relationship_goal, profession, bio, interests, last_active_at, online, hidden
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date_of_birth = excluded.date_of_birth,
			height_cm = excluded.height_cm,
			location = excluded.location,
			country_of_origin = excluded.country_of_origin,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			religion = excluded.religion,
			ethnicity = excluded.ethnicity,
			secondary_tribe = excluded.secondary_tribe,
			body_type = excluded.body_type,
			education_level = excluded.education_level,
			education_institutions = excluded.education_institutions,
			has_children = excluded.has_children,
			wants_children = excluded.wants_children,
			relationship_goal = excluded.relationship_goal,
			profession = excluded.profession,
			bio = excluded.bio,
			interests = excluded.interests,
			last_active_at = excluded.last_active_at,
			online = excluded.online,
			hidden = excluded.hidden
	`,
		p.ID, p.CreatedAt.UTC(), p.DateOfBirth.UTC(), p.HeightCM, p.Location, p.CountryOfOrigin,
		p.Latitude, p.Longitude, p.Religion, p.Ethnicity, p.SecondaryTribe, p.BodyType,
		p.EducationLevel, string(institutions), p.HasChildren, p.WantsChildren,
		p.RelationshipGoal, p.Profession, p.Bio, string(interests), p.LastActiveAt.UTC(), p.Online, p.Hidden,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store profile %s: %w", p.ID, err)
	}
	return nil
}

// GetPreferences retrieves a member's preference set. A member who has not
// stated preferences yet yields (nil, nil): absence is neutral, not an error.
func (s *ProfileStore) GetPreferences(ctx context.Context, userID string) (*types.PreferenceSet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, selectPreferences+" WHERE user_id = ?", userID)
	prefs, err := scanPreferences(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get preferences for %s: %w", userID, err)
	}
	return prefs, nil
}

// BatchGetPreferences loads preference sets for many members in one query.
// Members with no stored preferences are simply absent from the result.
func (s *ProfileStore) BatchGetPreferences(ctx context.Context, userIDs []string) (map[string]*types.PreferenceSet, error) {
	result := make(map[string]*types.PreferenceSet, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, selectPreferences+" WHERE user_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to batch-get preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		prefs, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan preferences: %w", err)
		}
		result[prefs.UserID] = prefs
	}
	return result, rows.Err()
}

// StorePreferences creates or updates a member's preference set.
func (s *ProfileStore) StorePreferences(ctx context.Context, prefs *types.PreferenceSet) error {
	if prefs == nil || prefs.UserID == "" {
		return fmt.Errorf("%w: preference set with user ID is required", storage.ErrInvalidInput)
	}

	encode := func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	}

	religions, err := encode(prefs.Religions)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode preferences: %w", err)
	}
	ethnicities, _ := encode(prefs.Ethnicities)
	bodyTypes, _ := encode(prefs.BodyTypes)
	educations, _ := encode(prefs.EducationLevels)
	priorities, _ := encode(priorityLabels(prefs.MatchingPriorities))
	dealBreakers, _ := encode(priorityLabels(prefs.DealBreakers))

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (
			user_id, min_age, max_age, min_height_cm, max_height_cm,
			religions, ethnicities, body_types, education_levels,
			accepts_children, wants_children, location_preference,
			matching_priorities, deal_breakers
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			min_age = excluded.min_age,
			max_age = excluded.max_age,
			min_height_cm = excluded.min_height_cm,
			max_height_cm = excluded.max_height_cm,
			religions = excluded.religions,
			ethnicities = excluded.ethnicities,
			body_types = excluded.body_types,
			education_levels = excluded.education_levels,
			accepts_children = excluded.accepts_children,
			wants_children = excluded.wants_children,
			location_preference = excluded.location_preference,
			matching_priorities = excluded.matching_priorities,
			deal_breakers = excluded.deal_breakers
	`,
		prefs.UserID, prefs.MinAge, prefs.MaxAge, prefs.MinHeightCM, prefs.MaxHeightCM,
		religions, ethnicities, bodyTypes, educations,
		prefs.AcceptsChildren, prefs.WantsChildren, prefs.LocationPreference,
		priorities, dealBreakers,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store preferences for %s: %w", prefs.UserID, err)
	}
	return nil
}

// GetCandidatePool returns visible profiles excluding the member themselves
// and anyone they have already rated.
func (s *ProfileStore) GetCandidatePool(ctx context.Context, userID string) ([]*types.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, selectProfile+`
		WHERE id != ?
		  AND hidden = 0
		  AND id NOT IN (SELECT target_id FROM interactions WHERE actor_id = ?)
		ORDER BY last_active_at DESC
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get candidate pool for %s: %w", userID, err)
	}
	defer rows.Close()

	var pool []*types.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan profile: %w", err)
		}
		pool = append(pool, p)
	}
	return pool, rows.Err()
}

// RecordInteraction appends one swipe/match event to the interaction log.
func (s *ProfileStore) RecordInteraction(ctx context.Context, r types.InteractionRecord) error {
	if r.ActorID == "" || r.TargetID == "" {
		return fmt.Errorf("%w: actor and target IDs are required", storage.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (actor_id, target_id, rating, is_match, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ActorID, r.TargetID, r.Rating, r.Match, r.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to record interaction: %w", err)
	}
	return nil
}

// GetInteractionLog returns the full interaction log, oldest first.
func (s *ProfileStore) GetInteractionLog(ctx context.Context) ([]types.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor_id, target_id, rating, is_match, created_at
		FROM interactions
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to read interaction log: %w", err)
	}
	defer rows.Close()

	var records []types.InteractionRecord
	for rows.Next() {
		var r types.InteractionRecord
		if err := rows.Scan(&r.ActorID, &r.TargetID, &r.Rating, &r.Match, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan interaction: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetReciprocityStats derives a member's response rate and latency from the
// interaction log: of the likes they received, how many did they answer with
// a rating of their own, and how quickly.
func (s *ProfileStore) GetReciprocityStats(ctx context.Context, userID string) (*types.ReciprocityStats, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	var received, answered int
	var avgLatency sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(reply.actor_id),
			AVG(CASE WHEN reply.created_at IS NOT NULL
				THEN (julianday(reply.created_at) - julianday(inbound.created_at)) * 86400.0
			END)
		FROM interactions inbound
		LEFT JOIN interactions reply
			ON reply.actor_id = inbound.target_id
			AND reply.target_id = inbound.actor_id
			AND reply.created_at >= inbound.created_at
		WHERE inbound.target_id = ? AND inbound.rating > 0
	`, userID).Scan(&received, &answered, &avgLatency)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to derive reciprocity stats for %s: %w", userID, err)
	}

	if received == 0 {
		return nil, nil
	}

	stats := &types.ReciprocityStats{
		UserID:       userID,
		ResponseRate: float64(answered) / float64(received),
	}
	if avgLatency.Valid && avgLatency.Float64 > 0 {
		stats.AvgResponseSecs = avgLatency.Float64
	}
	return stats, nil
}

// selectProfile is the shared column list for profile scans.
const selectProfile = `
	SELECT id, created_at, date_of_birth, height_cm, location, country_of_origin,
		latitude, longitude, religion, ethnicity, secondary_tribe, body_type,
		education_level, education_institutions, has_children, wants_children,
		relationship_goal, profession, bio, interests, last_active_at, online, hidden
	FROM profiles`

// selectPreferences is the shared column list for preference scans.
const selectPreferences = `
	SELECT user_id, min_age, max_age, min_height_cm, max_height_cm,
		religions, ethnicities, body_types, education_levels,
		accepts_children, wants_children, location_preference,
		matching_priorities, deal_breakers
	FROM preferences`

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanProfile reads one profile row. List columns are stored as JSON text;
// a malformed column decodes to an empty collection and is logged, so the
// engine downstream never sees unparsable data.
func scanProfile(row scanner) (*types.Profile, error) {
	var p types.Profile
	var interests, institutions string
	err := row.Scan(
		&p.ID, &p.CreatedAt, &p.DateOfBirth, &p.HeightCM, &p.Location, &p.CountryOfOrigin,
		&p.Latitude, &p.Longitude, &p.Religion, &p.Ethnicity, &p.SecondaryTribe, &p.BodyType,
		&p.EducationLevel, &institutions, &p.HasChildren, &p.WantsChildren,
		&p.RelationshipGoal, &p.Profession, &p.Bio, &interests, &p.LastActiveAt, &p.Online, &p.Hidden,
	)
	if err != nil {
		return nil, err
	}
	p.Interests = decodeStringList(interests, p.ID, "interests")
	p.EducationInstitutions = decodeStringList(institutions, p.ID, "education_institutions")
	return &p, nil
}

// scanPreferences reads one preference row with the same recovery policy.
func scanPreferences(row scanner) (*types.PreferenceSet, error) {
	var prefs types.PreferenceSet
	var religions, ethnicities, bodyTypes, educations, priorities, dealBreakers string
	err := row.Scan(
		&prefs.UserID, &prefs.MinAge, &prefs.MaxAge, &prefs.MinHeightCM, &prefs.MaxHeightCM,
		&religions, &ethnicities, &bodyTypes, &educations,
		&prefs.AcceptsChildren, &prefs.WantsChildren, &prefs.LocationPreference,
		&priorities, &dealBreakers,
	)
	if err != nil {
		return nil, err
	}
	prefs.Religions = decodeStringList(religions, prefs.UserID, "religions")
	prefs.Ethnicities = decodeStringList(ethnicities, prefs.UserID, "ethnicities")
	prefs.BodyTypes = decodeStringList(bodyTypes, prefs.UserID, "body_types")
	prefs.EducationLevels = decodeStringList(educations, prefs.UserID, "education_levels")
	prefs.MatchingPriorities = decodePriorities(priorities, prefs.UserID, "matching_priorities")
	prefs.DealBreakers = decodePriorities(dealBreakers, prefs.UserID, "deal_breakers")
	return &prefs, nil
}

// decodeStringList decodes a JSON string array column. Malformed data yields
// an empty list, logged once: recovery from bad serialization belongs here
// at the storage boundary, not in the engine.
func decodeStringList(raw, ownerID, column string) []string {
	if raw == "" || raw == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("WARNING: sqlite: malformed %s for %s, treating as empty: %v", column, ownerID, err)
		return nil
	}
	return out
}

// decodePriorities decodes a JSON string array column into priority kinds,
// dropping labels that are not part of the closed enum.
func decodePriorities(raw, ownerID, column string) []types.PriorityKind {
	labels := decodeStringList(raw, ownerID, column)
	if len(labels) == 0 {
		return nil
	}
	kinds := make([]types.PriorityKind, 0, len(labels))
	for _, l := range labels {
		if k := types.ParsePriorityKind(strings.ToLower(strings.TrimSpace(l))); k != types.PriorityUnknown {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// priorityLabels converts priority kinds back to their stored labels.
func priorityLabels(kinds []types.PriorityKind) []string {
	labels := make([]string, len(kinds))
	for i, k := range kinds {
		labels[i] = k.String()
	}
	return labels
}

// TouchLastActive marks a member as last active at the given instant. Used
// by data loaders and tests.
func (s *ProfileStore) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE profiles SET last_active_at = ? WHERE id = ?", at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to touch last_active_at for %s: %w", userID, err)
	}
	return nil
}
