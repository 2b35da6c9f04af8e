// Package models defines the AlignOS domain rows shared by the store, services and transports.
package models

import "time"

// Metadata is a free-form JSON object attached to relationships, events and sources.
type Metadata map[string]any

type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TeamID    *string   `json:"team_id"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Team struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	ParentTeamID *string   `json:"parent_team_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	OwnerID     *string       `json:"owner_id"`
	TeamID      *string       `json:"team_id"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type Decision struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Rationale   *string        `json:"rationale"`
	Status      DecisionStatus `json:"status"`
	ProjectID   *string        `json:"project_id"`
	CreatedBy   *string        `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// VersionContent is the snapshot stored with every decision version.
type VersionContent struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Rationale   *string `json:"rationale"`
}

type DecisionVersion struct {
	ID            string         `json:"id"`
	DecisionID    string         `json:"decision_id"`
	Version       int            `json:"version"`
	Content       VersionContent `json:"content"`
	ChangeSummary *string        `json:"change_summary"`
	ChangedBy     *string        `json:"changed_by"`
	ChangedAt     time.Time      `json:"changed_at"`
}

// Acknowledgment links a stakeholder to a decision; a nil AcknowledgedAt means pending.
type Acknowledgment struct {
	ID             string     `json:"id"`
	DecisionID     string     `json:"decision_id"`
	PersonID       string     `json:"person_id"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Relationship struct {
	ID               string           `json:"id"`
	SourceType       EntityType       `json:"source_type"`
	SourceID         string           `json:"source_id"`
	TargetType       EntityType       `json:"target_type"`
	TargetID         string           `json:"target_id"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Metadata         Metadata         `json:"metadata"`
	CreatedAt        time.Time        `json:"created_at"`
}

type Conflict struct {
	ID                  string         `json:"id"`
	Type                ConflictType   `json:"type"`
	EntityIDs           []string       `json:"entity_ids"`
	Status              ConflictStatus `json:"status"`
	Description         string         `json:"description"`
	SuggestedResolution *string        `json:"suggested_resolution"`
	CreatedAt           time.Time      `json:"created_at"`
	ResolvedAt          *time.Time     `json:"resolved_at"`
}

type Event struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	EventType  EventType  `json:"event_type"`
	Metadata   Metadata   `json:"metadata"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Source struct {
	ID               string     `json:"id"`
	Type             SourceType `json:"type"`
	RawContent       string     `json:"raw_content"`
	ProcessedContent *string    `json:"processed_content"`
	Metadata         Metadata   `json:"metadata"`
	CreatedAt        time.Time  `json:"created_at"`
}

type Document struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Content   *string      `json:"content"`
	SourceURL *string      `json:"source_url"`
	Type      DocumentType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// Ptr returns a pointer to v. Handy for optional columns.
func Ptr[T any](v T) *T {
	return &v
}
