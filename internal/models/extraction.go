package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// UnknownRole is used when the extractor could not determine a person's role.
const UnknownRole = "Unknown"

// ExtractedDecision is a decision found in ingested text.
type ExtractedDecision struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Rationale   *string `json:"rationale,omitempty"`
}

// Validate checks a single extracted decision.
func (d ExtractedDecision) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&d.Description, validation.Required),
	)
}

// ExtractedPerson is a person mentioned in ingested text.
type ExtractedPerson struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (p ExtractedPerson) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&p.Role, validation.Required),
	)
}

// ExtractedProject is a project or initiative mentioned in ingested text.
type ExtractedProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (p ExtractedProject) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.RuneLength(1, 200)),
	)
}

// Extraction is the structured result of entity extraction. It is the payload
// returned to callers for review and later handed back for commit.
type Extraction struct {
	Decisions             []ExtractedDecision `json:"decisions"`
	People                []ExtractedPerson   `json:"people"`
	Projects              []ExtractedProject  `json:"projects"`
	SuggestedStakeholders []string            `json:"suggested_stakeholders"`
	Summary               string              `json:"summary"`
}

// Repair normalises a decoded extraction in place: strings are trimmed,
// missing roles default to UnknownRole, empty rationales are dropped and
// nil slices become empty ones.
func (e *Extraction) Repair() {
	if e.Decisions == nil {
		e.Decisions = []ExtractedDecision{}
	}
	if e.People == nil {
		e.People = []ExtractedPerson{}
	}
	if e.Projects == nil {
		e.Projects = []ExtractedProject{}
	}
	if e.SuggestedStakeholders == nil {
		e.SuggestedStakeholders = []string{}
	}
	for i := range e.Decisions {
		d := &e.Decisions[i]
		d.Title = strings.TrimSpace(d.Title)
		d.Description = strings.TrimSpace(d.Description)
		if d.Rationale != nil {
			r := strings.TrimSpace(*d.Rationale)
			if r == "" {
				d.Rationale = nil
			} else {
				d.Rationale = &r
			}
		}
	}
	for i := range e.People {
		p := &e.People[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Role = strings.TrimSpace(p.Role)
		if p.Role == "" {
			p.Role = UnknownRole
		}
	}
	for i := range e.Projects {
		e.Projects[i].Name = strings.TrimSpace(e.Projects[i].Name)
		e.Projects[i].Description = strings.TrimSpace(e.Projects[i].Description)
	}
	stakeholders := e.SuggestedStakeholders[:0]
	for _, s := range e.SuggestedStakeholders {
		if s = strings.TrimSpace(s); s != "" {
			stakeholders = append(stakeholders, s)
		}
	}
	e.SuggestedStakeholders = stakeholders
	e.Summary = strings.TrimSpace(e.Summary)
}

// Validate checks every element; slices of Validatable values are walked by ozzo.
func (e Extraction) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Decisions),
		validation.Field(&e.People),
		validation.Field(&e.Projects),
	)
}

// Empty reports whether there is nothing to commit.
func (e Extraction) Empty() bool {
	return len(e.Decisions) == 0 && len(e.People) == 0 && len(e.Projects) == 0
}
