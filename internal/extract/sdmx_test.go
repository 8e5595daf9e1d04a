// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSDMXJSON = `{
  "header": {"id": "EDU_ENRL"},
  "dataSets": [
    {
      "action": "Information",
      "observations": {
        "0:0:1": [96.2, 0],
        "0:0:0": [95.5],
        "1:0:0": [97.1],
        "1:0:1": [],
        "2:0:0": null
      }
    }
  ],
  "structure": {
    "dimensions": {
      "observation": [
        {"id": "LOCATION", "name": "Country", "values": [
          {"id": "USA", "name": "United States"},
          {"id": "DEU", "name": "Germany"}
        ]},
        {"id": "INDICATOR", "name": "Indicator", "values": [
          {"id": "ENRL_RATE", "name": "Enrolment rate"}
        ]},
        {"id": "TIME_PERIOD", "name": "Time", "values": [
          {"id": "2021", "name": "2021"},
          {"id": "2022", "name": "2022"}
        ]}
      ]
    }
  }
}`

func TestParseSDMX(t *testing.T) {
	obs, err := ParseSDMX([]byte(sampleSDMXJSON))
	require.NoError(t, err)
	require.Len(t, obs, 5)

	// Sorted by numeric key: 0:0:0, 0:0:1, 1:0:0, 1:0:1, 2:0:0.
	first := obs[0]
	assert.Equal(t, "USA", first.Dimensions["LOCATION"])
	assert.Equal(t, "United States", first.Labels["LOCATION"])
	assert.Equal(t, "ENRL_RATE", first.Dimensions["INDICATOR"])
	assert.Equal(t, "2021", first.Dimensions["TIME_PERIOD"])
	require.NotNil(t, first.Value)
	assert.InDelta(t, 95.5, *first.Value, 1e-9)

	require.NotNil(t, obs[1].Value)
	assert.InDelta(t, 96.2, *obs[1].Value, 1e-9, "attributes after the value are ignored")

	assert.Nil(t, obs[3].Value, "empty observation array has no value")

	// Index 2 is out of range for LOCATION: that dimension is skipped.
	_, hasLoc := obs[4].Dimensions["LOCATION"]
	assert.False(t, hasLoc)
	assert.Nil(t, obs[4].Value)
}

func TestParseSDMXVersion2Envelope(t *testing.T) {
	body := `{
	  "data": {
	    "dataSets": [{"observations": {"0:0": ["12.5"]}}],
	    "structures": [{"dimensions": {"observation": [
	      {"id": "REF_AREA", "values": [{"id": "FRA", "name": "France"}]},
	      {"name": "Year", "values": [{"name": "2020"}]}
	    ]}}]
	  }
	}`
	obs, err := ParseSDMX([]byte(body))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "FRA", obs[0].Dimensions["REF_AREA"])
	assert.Equal(t, "2020", obs[0].Dimensions["Year"], "falls back to dimension and value names")
	require.NotNil(t, obs[0].Value)
	assert.InDelta(t, 12.5, *obs[0].Value, 1e-9, "string numbers are parsed")
}

func TestParseSDMXMissingNamesUseIndex(t *testing.T) {
	body := `{"dataSets":[{"observations":{"0":[1]}}],
	  "structure":{"dimensions":{"observation":[{"values":[{"id":"X"}]}]}}}`
	obs, err := ParseSDMX([]byte(body))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "X", obs[0].Dimensions["dim_0"])
}

func TestParseSDMXEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr string
	}{
		{"no datasets", `{"structure": {}}`, 0, ""},
		{"empty observations", `{"dataSets": [{"observations": {}}]}`, 0, ""},
		{"malformed key", `{"dataSets": [{"observations": {"a:b": [1]}}]}`, 0, "malformed observation key"},
		{"negative key", `{"dataSets": [{"observations": {"-1": [1]}}]}`, 0, "malformed observation key"},
		{"invalid json", `{`, 0, "decoding SDMX-JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := ParseSDMX([]byte(tt.body))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, obs, tt.wantLen)
		})
	}
}

func TestLessKey(t *testing.T) {
	assert.True(t, lessKey("0:2", "0:10"))
	assert.False(t, lessKey("1:0", "0:9"))
	assert.True(t, lessKey("0", "0:1"))
}
