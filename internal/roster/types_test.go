package roster

import (
	"testing"

	"github.com/aws/smithy-go/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityTypesOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []EntityType{EntityTeacher, EntityStudent, EntitySection, EntityAdmin}, EntityTypes())
	assert.Len(t, Schemas(), 4)
}

func TestSchemaFor(t *testing.T) {
	t.Parallel()

	schema, ok := SchemaFor(EntityStudent)
	require.True(t, ok)
	assert.Equal(t, "students", schema.Table)
	assert.True(t, schema.HasField("email"))
	assert.False(t, schema.HasField("password"))
	assert.Equal(t, "name.first", schema.Path("first_name"))
	assert.Equal(t, "email", schema.Path("email"))

	section, ok := SchemaFor(EntitySection)
	require.True(t, ok)
	assert.Equal(t, "teacher", section.Path("teacher_source_id"))

	_, ok = SchemaFor("course")
	assert.False(t, ok)
	assert.False(t, EntityType("course").Valid())
	assert.True(t, EntityAdmin.Valid())
}

func TestParseEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw        string
		entityType EntityType
		action     Action
	}{
		{"students.created", EntityStudent, ActionCreated},
		{"teachers.updated", EntityTeacher, ActionUpdated},
		{"sections.deleted", EntitySection, ActionDeleted},
		{"school_admins.updated", EntityAdmin, ActionUpdated},
		{"courses.updated", "", ActionUpdated},
		{"students.merged", EntityStudent, ""},
		{"garbage", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			entityType, action := ParseEventType(tt.raw)
			assert.Equal(t, tt.entityType, entityType)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestEntityValue(t *testing.T) {
	t.Parallel()

	var nilEntity *Entity
	assert.Nil(t, nilEntity.Value("email"))

	e := &Entity{SourceID: "s1", Fields: map[string]*string{"email": ptr.String("a@b.c")}}
	assert.Equal(t, "a@b.c", *e.Value("email"))
	assert.Nil(t, e.Value("grade"))
}
