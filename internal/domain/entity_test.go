package domain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormschema "gorm.io/gorm/schema"
)

// Every descriptor must list exactly the columns GORM maps for the struct.
func TestDescriptorsMatchMappedColumns(t *testing.T) {
	cache := &sync.Map{}
	for _, m := range Models() {
		e := m.(Entity)
		s, err := gormschema.Parse(m, cache, gormschema.NamingStrategy{})
		require.NoError(t, err)

		d := e.Descriptor()
		assert.Equal(t, s.Table, d.Table(), d.Entity())
		assert.ElementsMatch(t, s.DBNames, d.Columns(), d.Entity())
	}
}

func TestSoftDeleteCapability(t *testing.T) {
	for _, m := range Models() {
		_, soft := m.(SoftDeletable)
		assert.True(t, soft, "%T", m)
		assert.True(t, m.(Entity).Descriptor().Has(ColDeletedAt), "%T", m)
	}
}

func TestForeignKeyRules(t *testing.T) {
	for _, m := range []Entity{&Note{}, &Reminder{}, &ExternalTask{}, &Session{}} {
		f, ok := m.Descriptor().Field("user_id")
		require.True(t, ok)
		assert.Equal(t, "users.id", f.References)
		assert.Equal(t, "CASCADE", f.OnDelete)
	}
	for _, m := range []Entity{&Reminder{}, &ExternalTask{}} {
		f, ok := m.Descriptor().Field("note_id")
		require.True(t, ok)
		assert.True(t, f.Nullable)
		assert.Equal(t, "SET NULL", f.OnDelete)
	}
}

// Foreign keys and unique columns declared in descriptors must be the ones
// GORM derives from the struct tags.
func TestDescriptorConstraintsMatchMapping(t *testing.T) {
	cache := &sync.Map{}
	for _, m := range Models() {
		d := m.(Entity).Descriptor()
		s, err := gormschema.Parse(m, cache, gormschema.NamingStrategy{})
		require.NoError(t, err)

		var fks []string
		for _, rel := range s.Relationships.BelongsTo {
			c := rel.ParseConstraint()
			require.NotNil(t, c, "%s.%s", d.Entity(), rel.Name)
			require.Len(t, c.ForeignKeys, 1)
			fks = append(fks, c.ForeignKeys[0].DBName)

			f, ok := d.Field(c.ForeignKeys[0].DBName)
			require.True(t, ok)
			assert.Equal(t, c.ReferenceSchema.Table+"."+c.References[0].DBName, f.References, "%s.%s", d.Entity(), f.Column)
			assert.Equal(t, c.OnDelete, f.OnDelete, "%s.%s", d.Entity(), f.Column)
		}
		var declared []string
		for _, f := range d.ForeignKeys() {
			declared = append(declared, f.Column)
		}
		assert.ElementsMatch(t, fks, declared, d.Entity())

		var unique []string
		for _, f := range s.Fields {
			if f.DBName == "" {
				continue
			}
			if _, idx := f.TagSettings["UNIQUEINDEX"]; f.PrimaryKey || f.Unique || idx {
				unique = append(unique, f.DBName)
			}
		}
		declared = declared[:0]
		for _, f := range d.Unique() {
			declared = append(declared, f.Column)
		}
		assert.ElementsMatch(t, unique, declared, d.Entity())
	}
}

func TestEnums(t *testing.T) {
	for _, c := range []ContentType{ContentText, ContentVoice, ContentPDF, ContentImage} {
		assert.True(t, c.Valid())
	}
	assert.False(t, ContentType("video").Valid())
	assert.True(t, SourceAPI.Valid())
	assert.False(t, NoteSource("").Valid())
	assert.True(t, SyncError.Valid())
	assert.False(t, SyncStatus("done").Valid())
}

func TestNewUserIsActive(t *testing.T) {
	u := NewUser(9)
	assert.Equal(t, int64(9), u.ExternalID)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsDeleted())
}
