package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortsByOrder(t *testing.T) {
	s, err := New(
		FieldDefinition{Name: "age", Order: 2, Kind: KindNumber, Required: true},
		FieldDefinition{Name: "full_name", Order: 1, Kind: KindText, Required: true},
		FieldDefinition{Name: "notes", Order: 3, Kind: KindFreeText},
	)
	require.NoError(t, err)

	fields := s.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "full_name", fields[0].Name)
	assert.Equal(t, "age", fields[1].Name)
	assert.Equal(t, 2, s.RequiredCount())
	assert.Equal(t, 3, s.Len())
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string][]FieldDefinition{
		"empty":        nil,
		"blank name":   {{Name: "", Order: 1, Kind: KindText}},
		"unknown kind": {{Name: "x", Order: 1, Kind: "date"}},
		"duplicate":    {{Name: "x", Order: 1, Kind: KindText}, {Name: "x", Order: 2, Kind: KindText}},
		"same order":   {{Name: "x", Order: 1, Kind: KindText}, {Name: "y", Order: 1, Kind: KindText}},
		"min over max": {{Name: "x", Order: 1, Kind: KindNumber, Min: intPtr(5), Max: intPtr(1)}},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(fields...)
			assert.Error(t, err)
		})
	}
}

func TestNextAndAt(t *testing.T) {
	s := Default()

	next, ok := s.Next(1)
	require.True(t, ok)
	assert.Equal(t, "age", next.Name)

	_, ok = s.Next(10)
	assert.False(t, ok, "last field has no successor")

	f, ok := s.At(0)
	require.True(t, ok)
	assert.Equal(t, "full_name", f.Name)

	_, ok = s.At(s.Len())
	assert.False(t, ok)

	idx, ok := s.Index("email")
	require.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestDefaultMatchesApplicantForm(t *testing.T) {
	s := Default()
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 6, s.RequiredCount())
	assert.True(t, s.Has("work_experience"))
	assert.False(t, s.Has("created_at"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	doc := `fields:
  - name: full_name
    order: 1
    kind: text
    required: true
  - name: age
    order: 2
    kind: number
    required: true
    min: 0
    max: 150
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	age, ok := s.At(1)
	require.True(t, ok)
	require.NotNil(t, age.Max)
	assert.Equal(t, 150, *age.Max)
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: [\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
