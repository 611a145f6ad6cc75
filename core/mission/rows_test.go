package mission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/siku/core"
)

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "yaml", FormatOf("missions.yaml"))
	assert.Equal(t, "yaml", FormatOf("week1.YML"))
	assert.Equal(t, "yaml", FormatOf("application/x-yaml"))
	assert.Equal(t, "json", FormatOf("missions.json"))
	assert.Equal(t, "json", FormatOf("application/json; charset=UTF-8"))
}

func TestDecodeRows(t *testing.T) {
	const doc = `
- id: d1m1
  day_number: 1
  scheduled_time: "08:00"
  title: Wake up
  point_value: 10
  objectives: [stretch, breathe]
- id: d1m2
  day: 1
  title: Lunch
`
	rows, err := DecodeRows(strings.NewReader(doc), "yaml")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	groups, err := Normalize(rows)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	first := groups[0].Missions[0]
	assert.Equal(t, "d1m1", first.ID)
	assert.Equal(t, 10, first.Points)
	assert.Equal(t, []string{"stretch", "breathe"}, first.Objectives)

	rows, err = DecodeRows(strings.NewReader(`[{"id": "d1m1", "day_number": 1}]`), "json")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = DecodeRows(strings.NewReader(""), "yaml")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = DecodeRows(strings.NewReader(`{"id": "not a list"}`), "json")
	assert.IsType(t, &core.ArgumentError{}, err)

	_, err = DecodeRows(strings.NewReader(""), "toml")
	assert.IsType(t, &core.ArgumentError{}, err)
}
