// Package report emits the single JSON document each verb prints on stdout.
// The envelope carries a schema version for forward compatibility and a fresh
// invocation id so GUI logs can be correlated with engine logs.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/tweakctl/internal/ledger"
)

// Envelope wraps one verb's result.
type Envelope struct {
	Schema     int    `json:"schema"`
	Invocation string `json:"invocation"`
	Command    string `json:"command"`
	Result     any    `json:"result"`
}

// Emit writes the enveloped result as indented JSON.
func Emit(w io.Writer, command string, result any) error {
	env := Envelope{
		Schema:     ledger.SchemaVersion,
		Invocation: uuid.NewString(),
		Command:    command,
		Result:     result,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("emit %s result: %w", command, err)
	}
	return nil
}
