// Package registry loads the declarative knob catalog. Knobs are read-only
// input to the engine; the engine never persists them. Loading fails closed:
// schema mismatch, a non-array knob list, duplicate or empty ids, or an
// invalid implementation descriptor all reject the whole registry.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/ledger"
)

// RiskLevel grades a knob's blast radius.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Capabilities declares what the engine may do with a knob.
type Capabilities struct {
	Read    bool `json:"read"`
	Apply   bool `json:"apply"`
	Restore bool `json:"restore"`
}

// Knob is a named, declarative unit of system configuration change.
type Knob struct {
	ID             string       `json:"id" validate:"required"`
	Title          string       `json:"title" validate:"required"`
	Description    string       `json:"description"`
	Category       string       `json:"category"`
	RiskLevel      RiskLevel    `json:"risk_level" validate:"omitempty,oneof=low medium high"`
	RequiresRoot   bool         `json:"requires_root"`
	RequiresReboot bool         `json:"requires_reboot"`
	Capabilities   Capabilities `json:"capabilities"`
	Impl           *Impl        `json:"impl,omitempty"`
}

// Registry is the loaded, validated knob catalog.
type Registry struct {
	knobs []Knob
	byID  map[string]int
}

var validate = validator.New()

// Load reads and validates the registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tkerrors.Wrap(err, tkerrors.CategoryConfig, tkerrors.SeverityFatal,
			fmt.Sprintf("read registry %s", path))
	}
	return Parse(data)
}

// Parse validates a registry document.
func Parse(data []byte) (*Registry, error) {
	var doc struct {
		Schema int             `json:"schema"`
		Knobs  json.RawMessage `json:"knobs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, tkerrors.Wrap(err, tkerrors.CategoryConfig, tkerrors.SeverityFatal, "malformed registry document")
	}
	if doc.Schema != ledger.SchemaVersion {
		return nil, tkerrors.New(tkerrors.CategoryConfig, tkerrors.SeverityFatal,
			fmt.Sprintf("unsupported registry schema %d (want %d)", doc.Schema, ledger.SchemaVersion))
	}
	if len(doc.Knobs) == 0 || !bytes.HasPrefix(bytes.TrimSpace(doc.Knobs), []byte("[")) {
		return nil, tkerrors.New(tkerrors.CategoryConfig, tkerrors.SeverityFatal, "registry knobs must be an array")
	}

	var knobs []Knob
	if err := json.Unmarshal(doc.Knobs, &knobs); err != nil {
		return nil, tkerrors.Wrap(err, tkerrors.CategoryConfig, tkerrors.SeverityFatal, "malformed knob list")
	}

	r := &Registry{knobs: knobs, byID: make(map[string]int, len(knobs))}
	for i, k := range knobs {
		if err := validate.Struct(k); err != nil {
			return nil, tkerrors.Wrap(err, tkerrors.CategoryValidation, tkerrors.SeverityFatal,
				fmt.Sprintf("invalid knob %q", k.ID))
		}
		if _, dup := r.byID[k.ID]; dup {
			return nil, tkerrors.ValidationError(fmt.Sprintf("duplicate knob id %q", k.ID))
		}
		if k.Impl != nil {
			if err := k.Impl.Validate(); err != nil {
				return nil, tkerrors.Wrap(err, tkerrors.CategoryValidation, tkerrors.SeverityFatal,
					fmt.Sprintf("invalid impl for knob %q", k.ID))
			}
		}
		r.byID[k.ID] = i
	}
	return r, nil
}

// Knobs returns all knobs in catalog order.
func (r *Registry) Knobs() []Knob {
	return r.knobs
}

// Get resolves a knob by id.
func (r *Registry) Get(id string) (*Knob, error) {
	i, ok := r.byID[id]
	if !ok {
		return nil, tkerrors.NotFound("knob", id)
	}
	return &r.knobs[i], nil
}
