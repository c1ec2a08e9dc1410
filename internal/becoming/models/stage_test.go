package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageFor(t *testing.T) {
	cases := []struct {
		count int
		want  Stage
		name  string
	}{
		{0, StageGrayscale, "GRAYSCALE"},
		{1, StageColor, "COLOR"},
		{2, StageVivid, "VIVID"},
		{3, StageHalo, "HALO"},
		{4, StageHalo, "HALO"},
		{1000, StageHalo, "HALO"},
	}
	for _, tc := range cases {
		got := StageFor(tc.count)
		assert.Equal(t, tc.want, got, "count %d", tc.count)
		assert.Equal(t, tc.name, got.String())
	}
}

func TestStageJSON(t *testing.T) {
	raw, err := json.Marshal(StageVivid)
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":2,"name":"VIVID"}`, string(raw))

	var s Stage
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, StageVivid, s)
}
