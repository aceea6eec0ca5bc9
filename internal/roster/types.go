// Package roster defines the roster entities replicated from Clever and the
// client used to fetch them.
package roster

import (
	"slices"
	"strings"
	"time"
)

// EntityType identifies a kind of roster record
type EntityType string

const (
	// EntityStudent is a student user
	EntityStudent EntityType = "student"

	// EntityTeacher is a teacher user
	EntityTeacher EntityType = "teacher"

	// EntitySection is a class section
	EntitySection EntityType = "section"

	// EntityAdmin is a school administrator
	EntityAdmin EntityType = "admin"
)

// Schema describes how an entity type is stored and compared
type Schema struct {
	// Type is the entity type
	Type EntityType

	// Table is the tenant database table holding the records
	Table string

	// Resource is the Clever API collection name, also used as the event type prefix
	Resource string

	// Fields are the comparable text columns, in column order
	Fields []string

	// paths maps a field to its dotted location in the Clever object when it
	// differs from the field name
	paths map[string]string
}

// Path returns the dotted location of field in the source object
func (s Schema) Path(field string) string {
	if p, ok := s.paths[field]; ok {
		return p
	}
	return field
}

// HasField reports whether field is one of the comparable fields
func (s Schema) HasField(field string) bool {
	return slices.Contains(s.Fields, field)
}

var nameFields = map[string]string{
	"first_name":  "name.first",
	"middle_name": "name.middle",
	"last_name":   "name.last",
}

// Sections reference teachers, so teachers are synced before sections.
var schemas = []Schema{
	{
		Type:     EntityTeacher,
		Table:    "teachers",
		Resource: "teachers",
		Fields:   []string{"first_name", "last_name", "email", "title", "teacher_number", "sis_id"},
		paths:    nameFields,
	},
	{
		Type:     EntityStudent,
		Table:    "students",
		Resource: "students",
		Fields: []string{
			"first_name", "middle_name", "last_name", "email", "grade", "student_number", "state_id", "sis_id",
		},
		paths: nameFields,
	},
	{
		Type:     EntitySection,
		Table:    "sections",
		Resource: "sections",
		Fields: []string{
			"name", "course_name", "course_number", "subject", "grade", "period", "term_id", "teacher_source_id", "sis_id",
		},
		paths: map[string]string{"teacher_source_id": "teacher"},
	},
	{
		Type:     EntityAdmin,
		Table:    "admins",
		Resource: "school_admins",
		Fields:   []string{"first_name", "last_name", "email", "title", "staff_id"},
		paths:    nameFields,
	},
}

// EntityTypes returns every entity type in sync order
func EntityTypes() []EntityType {
	types := make([]EntityType, len(schemas))
	for i, s := range schemas {
		types[i] = s.Type
	}
	return types
}

// Schemas returns every schema in sync order
func Schemas() []Schema {
	return slices.Clone(schemas)
}

// SchemaFor returns the schema of t
func SchemaFor(t EntityType) (Schema, bool) {
	for _, s := range schemas {
		if s.Type == t {
			return s, true
		}
	}
	return Schema{}, false
}

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	_, ok := SchemaFor(t)
	return ok
}

// Entity is one roster record as seen by the sync engines
type Entity struct {
	// SourceID is the Clever id of the record
	SourceID string

	// Fields holds the comparable field values; nil means absent
	Fields map[string]*string

	// LastModified is the source's modification timestamp, when provided
	LastModified *time.Time
}

// Value returns the value of field, or nil if absent
func (e *Entity) Value(field string) *string {
	if e == nil || e.Fields == nil {
		return nil
	}
	return e.Fields[field]
}

// Record is an Entity as stored in a tenant database
type Record struct {
	Entity

	// Active is false once the record was soft-deactivated
	Active bool

	// DeactivatedAt is when the record was last soft-deactivated
	DeactivatedAt *time.Time

	// UpdatedAt is when the row was last written
	UpdatedAt time.Time
}

// Action is the kind of change an event carries
type Action string

const (
	// ActionCreated means the record was created at the source
	ActionCreated Action = "created"

	// ActionUpdated means the record was modified at the source
	ActionUpdated Action = "updated"

	// ActionDeleted means the record was removed at the source
	ActionDeleted Action = "deleted"
)

// Event is one entry of the source's change log
type Event struct {
	// ID is the source's monotonically ordered event id
	ID string

	// Type is the raw event type, e.g. "students.updated"
	Type string

	// EntityType is empty when the event refers to an unknown entity type
	EntityType EntityType

	// Action is empty when the event carries an unknown action
	Action Action

	// Payload is the record state after the change; for deletes only SourceID is set
	Payload *Entity

	// Created is when the event was emitted
	Created time.Time
}

// ParseEventType splits a raw event type such as "sections.deleted" into
// its entity type and action. Either part is empty when unrecognized.
func ParseEventType(raw string) (EntityType, Action) {
	resource, verb, _ := strings.Cut(raw, ".")

	var entityType EntityType
	for _, s := range schemas {
		if s.Resource == resource {
			entityType = s.Type
			break
		}
	}

	var action Action
	switch Action(verb) {
	case ActionCreated, ActionUpdated, ActionDeleted:
		action = Action(verb)
	}
	return entityType, action
}
