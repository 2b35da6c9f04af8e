package models

// EntityType tags the kind of row an event or relationship endpoint refers to.
type EntityType string

const (
	EntityPerson   EntityType = "person"
	EntityTeam     EntityType = "team"
	EntityProject  EntityType = "project"
	EntityDecision EntityType = "decision"
	EntityDocument EntityType = "document"
	EntitySource   EntityType = "source"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPerson, EntityTeam, EntityProject, EntityDecision, EntityDocument, EntitySource:
		return true
	}
	return false
}

// RelationshipType is the label on an explicit or implicit edge.
type RelationshipType string

const (
	RelOwns        RelationshipType = "owns"
	RelMemberOf    RelationshipType = "member_of"
	RelDependsOn   RelationshipType = "depends_on"
	RelRelatesTo   RelationshipType = "relates_to"
	RelAffects     RelationshipType = "affects"
	RelStakeholder RelationshipType = "stakeholder"
)

// Valid reports whether t is a known relationship type.
func (t RelationshipType) Valid() bool {
	switch t {
	case RelOwns, RelMemberOf, RelDependsOn, RelRelatesTo, RelAffects, RelStakeholder:
		return true
	}
	return false
}

type DecisionStatus string

const (
	DecisionDraft      DecisionStatus = "draft"
	DecisionActive     DecisionStatus = "active"
	DecisionSuperseded DecisionStatus = "superseded"
	DecisionDeprecated DecisionStatus = "deprecated"
)

func (s DecisionStatus) Valid() bool {
	switch s {
	case DecisionDraft, DecisionActive, DecisionSuperseded, DecisionDeprecated:
		return true
	}
	return false
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectArchived  ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold, ProjectArchived:
		return true
	}
	return false
}

type ConflictType string

const (
	ConflictDuplicate        ConflictType = "duplicate"
	ConflictContradiction    ConflictType = "contradiction"
	ConflictTimelineMismatch ConflictType = "timeline_mismatch"
	ConflictOwnershipOverlap ConflictType = "ownership_overlap"
	ConflictStale            ConflictType = "stale"
)

func (t ConflictType) Valid() bool {
	switch t {
	case ConflictDuplicate, ConflictContradiction, ConflictTimelineMismatch, ConflictOwnershipOverlap, ConflictStale:
		return true
	}
	return false
}

type ConflictStatus string

const (
	ConflictDetected  ConflictStatus = "detected"
	ConflictReviewing ConflictStatus = "reviewing"
	ConflictResolved  ConflictStatus = "resolved"
	ConflictDismissed ConflictStatus = "dismissed"
)

func (s ConflictStatus) Valid() bool {
	switch s {
	case ConflictDetected, ConflictReviewing, ConflictResolved, ConflictDismissed:
		return true
	}
	return false
}

type EventType string

const (
	EventCreated          EventType = "created"
	EventUpdated          EventType = "updated"
	EventDeleted          EventType = "deleted"
	EventAcknowledged     EventType = "acknowledged"
	EventConflictDetected EventType = "conflict_detected"
)

type SourceType string

const (
	SourceText  SourceType = "text"
	SourceFile  SourceType = "file"
	SourceVoice SourceType = "voice"
	SourceAPI   SourceType = "api"
)

type DocumentType string

const (
	DocumentTranscript DocumentType = "transcript"
	DocumentDocument   DocumentType = "document"
	DocumentNotes      DocumentType = "notes"
	DocumentEmail      DocumentType = "email"
	DocumentOther      DocumentType = "other"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTranscript, DocumentDocument, DocumentNotes, DocumentEmail, DocumentOther:
		return true
	}
	return false
}
