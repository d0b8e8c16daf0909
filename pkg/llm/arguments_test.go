package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

func TestArgumentPayload_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		kind PayloadKind
	}{
		{"string", `"{\"a\": 1}"`, PayloadRawString},
		{"object", `{"a": 1}`, PayloadStructured},
		{"null", `null`, PayloadAbsent},
		{"array", `[1, 2]`, PayloadUnsupported},
		{"number", `42`, PayloadUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload ArgumentPayload
			require.NoError(t, json.Unmarshal([]byte(tt.json), &payload))
			assert.Equal(t, tt.kind, payload.Kind)
		})
	}
}

func TestArgumentPayload_StringAndObjectNormalizeIdentically(t *testing.T) {
	var fromString, fromObject ArgumentPayload
	require.NoError(t, json.Unmarshal([]byte(`"{\"a\": 134, \"b\": 456}"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`{"a": 134, "b": 456}`), &fromObject))

	a, err := fromString.Normalize()
	require.NoError(t, err)
	b, err := fromObject.Normalize()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": float64(134), "b": float64(456)}, a)
	assert.Equal(t, a, b)
}

func TestArgumentPayload_NormalizeEmpty(t *testing.T) {
	for _, payload := range []ArgumentPayload{
		{},
		RawStringPayload(""),
		RawStringPayload("  "),
		StructuredPayload(nil),
		RawStringPayload("null"),
	} {
		args, err := payload.Normalize()
		require.NoError(t, err)
		assert.NotNil(t, args)
		assert.Empty(t, args)
	}
}

func TestArgumentPayload_NormalizeMalformed(t *testing.T) {
	for _, payload := range []ArgumentPayload{
		RawStringPayload("{not json"),
		RawStringPayload("[1,2]"),
		{Kind: PayloadUnsupported, Raw: "42"},
	} {
		_, err := payload.Normalize()
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMalformedToolCall), "payload %+v", payload)
	}
}

func TestNewParametersSchema(t *testing.T) {
	schema := NewParametersSchema(nil, nil)
	data, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{},"required":[]}`, string(data))

	schema = NewParametersSchema([]string{"b", "a"}, map[string]PropertySchema{
		"a": {Type: "number", Description: "First"},
		"b": {Type: "number", Description: "Second"},
	})
	assert.Equal(t, []string{"b", "a"}, schema.Required)
	assert.Len(t, schema.Properties, 2)
}
