package generation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuidedDecodingEmpty(t *testing.T) {
	assert.True(t, (&GuidedDecoding{}).Empty())
	assert.True(t, (&GuidedDecoding{Schema: ""}).Empty())
	assert.True(t, (&GuidedDecoding{Schema: "   "}).Empty())
	assert.False(t, (&GuidedDecoding{Schema: `{"type":"object"}`}).Empty())
	assert.False(t, (&GuidedDecoding{Schema: map[string]any{"type": "object"}}).Empty())
}

func TestSchemaForReflectsStruct(t *testing.T) {
	type weather struct {
		City        string  `json:"city"`
		TempCelsius float64 `json:"temp_celsius"`
	}

	provider := SchemaFor("WeatherReport", &weather{})
	assert.Equal(t, "WeatherReport", provider.SchemaName())

	raw, err := provider.JSONSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema["type"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "city")
	assert.Contains(t, properties, "temp_celsius")
}
