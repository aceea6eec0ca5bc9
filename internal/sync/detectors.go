package sync

import (
	"strings"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
)

// ChangeDetector decides whether an incoming record differs from the stored
// one. Only the schema's comparable fields are considered, and nil, empty and
// whitespace-only values are all treated as absent.
type ChangeDetector struct{}

// IsChanged reports whether any comparable field differs
func (ChangeDetector) IsChanged(schema roster.Schema, existing, incoming *roster.Entity) bool {
	for _, field := range schema.Fields {
		if !FieldsEqual(existing.Value(field), incoming.Value(field)) {
			return true
		}
	}
	return false
}

// ChangedFields returns the comparable fields that differ, in schema order
func (ChangeDetector) ChangedFields(schema roster.Schema, existing, incoming *roster.Entity) []string {
	var changed []string
	for _, field := range schema.Fields {
		if !FieldsEqual(existing.Value(field), incoming.Value(field)) {
			changed = append(changed, field)
		}
	}
	return changed
}

// Normalize returns the trimmed value and whether it is present
func Normalize(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}

// FieldsEqual compares two field values after normalization
func FieldsEqual(a, b *string) bool {
	av, aok := Normalize(a)
	bv, bok := Normalize(b)
	if aok != bok {
		return false
	}
	return av == bv
}
