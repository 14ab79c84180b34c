package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEmitWrapsResultInEnvelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Emit(&buf, "history", map[string]int{"transactions": 3}))

	var env struct {
		Schema     int            `json:"schema"`
		Invocation string         `json:"invocation"`
		Command    string         `json:"command"`
		Result     map[string]int `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	require.Equal(t, 1, env.Schema)
	require.Equal(t, "history", env.Command)
	require.Equal(t, 3, env.Result["transactions"])

	_, err := uuid.Parse(env.Invocation)
	require.NoError(t, err, "invocation id must be a valid uuid")
}

func TestEmitInvocationIDsAreUnique(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Emit(&a, "status", nil))
	require.NoError(t, Emit(&b, "status", nil))

	var envA, envB Envelope
	require.NoError(t, json.Unmarshal(a.Bytes(), &envA))
	require.NoError(t, json.Unmarshal(b.Bytes(), &envB))
	require.NotEqual(t, envA.Invocation, envB.Invocation)
}
