package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestParseMechanicNotesStructured(t *testing.T) {
	raw := `[{"note":"Replaced piston rings","cost":1500000},{"note":"Oil change"}]`

	items := ParseMechanicNotes(raw)
	require.Len(t, items, 2)
	assert.Equal(t, "Replaced piston rings", items[0].Note)
	require.NotNil(t, items[0].Cost)
	assert.Equal(t, 1500000.0, *items[0].Cost)
	assert.Equal(t, "Oil change", items[1].Note)
	assert.Nil(t, items[1].Cost)
}

func TestParseMechanicNotesLegacyProse(t *testing.T) {
	raw := "called the customer, parts arrive on monday"

	items := ParseMechanicNotes(raw)
	require.Len(t, items, 1)
	assert.Equal(t, raw, items[0].Note)
	assert.Nil(t, items[0].Cost)
}

func TestParseMechanicNotesBrokenJSONFallsBack(t *testing.T) {
	raw := `[{"note": "unterminated`

	items := ParseMechanicNotes(raw)
	require.Len(t, items, 1)
	assert.Equal(t, raw, items[0].Note)
	assert.Nil(t, items[0].Cost)
}

func TestParseMechanicNotesEmpty(t *testing.T) {
	assert.Nil(t, ParseMechanicNotes(""))
}

func TestSerializeMechanicNotesDropsEmpties(t *testing.T) {
	items := []MechanicNoteItem{
		{Note: "  "},
		{Note: "\t"},
	}
	assert.Nil(t, SerializeMechanicNotes(items))

	items = append(items, MechanicNoteItem{Note: " new brake pads ", Cost: fptr(250000)})
	raw := SerializeMechanicNotes(items)
	require.NotNil(t, raw)

	parsed := ParseMechanicNotes(*raw)
	require.Len(t, parsed, 1)
	assert.Equal(t, "new brake pads", parsed[0].Note)
	require.NotNil(t, parsed[0].Cost)
	assert.Equal(t, 250000.0, *parsed[0].Cost)
}

func TestMechanicNotesRoundTrip(t *testing.T) {
	cases := [][]MechanicNoteItem{
		{{Note: "Replaced piston rings", Cost: fptr(1500000)}},
		{{Note: "Diagnostics"}, {Note: "Timing belt", Cost: fptr(420000)}},
		{{Note: "Weld exhaust bracket", Cost: fptr(0)}},
	}

	for _, notes := range cases {
		raw := SerializeMechanicNotes(notes)
		require.NotNil(t, raw)
		assert.Equal(t, notes, ParseMechanicNotes(*raw))
	}
}

func TestNotesTotalCost(t *testing.T) {
	items := []MechanicNoteItem{
		{Note: "a", Cost: fptr(100)},
		{Note: "b"},
		{Note: "c", Cost: fptr(250.5)},
	}
	assert.Equal(t, 350.5, NotesTotalCost(items))
	assert.Equal(t, 0.0, NotesTotalCost(nil))
}

func TestNotesSummary(t *testing.T) {
	items := []MechanicNoteItem{
		{Note: "Replaced piston rings"},
		{Note: " Oil change "},
		{Note: ""},
	}
	assert.Equal(t, "Replaced piston rings; Oil change", NotesSummary(items))
}
