package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONOutputIncludesComponentAndMessage(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithComponent("waste").Info().Msg("hello")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "waste", decoded["component"])
	assert.Equal(t, "hello", decoded["message"])
}

func TestWithTask_IncludesIdentity(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithTask("download", "demo", "1.0.0").Debug().Msg("started")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "download", decoded["process"])
	assert.Equal(t, "demo", decoded["package"])
	assert.Equal(t, "1.0.0", decoded["version"])
}
