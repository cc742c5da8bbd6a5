package generation

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
)

// Settings holds the sampling and decoding controls applied to every request
// built from a conversation.
type Settings struct {
	Model            string          `json:"model" yaml:"model"`
	MaxNewTokens     int             `json:"max_new_tokens" yaml:"max_new_tokens"`
	Temperature      float32         `json:"temperature" yaml:"temperature"`
	TopP             float32         `json:"top_p" yaml:"top_p"`
	FrequencyPenalty float32         `json:"frequency_penalty" yaml:"frequency_penalty"`
	PresencePenalty  float32         `json:"presence_penalty" yaml:"presence_penalty"`
	Seed             *int            `json:"seed,omitempty" yaml:"seed,omitempty"`
	StopStrings      []string        `json:"stop_strings,omitempty" yaml:"stop_strings,omitempty"`
	LogitBias        map[string]int  `json:"logit_bias,omitempty" yaml:"logit_bias,omitempty"`
	GuidedDecoding   *GuidedDecoding `json:"guided_decoding,omitempty" yaml:"-"`
}

// GuidedDecoding constrains the model's output to a JSON schema. Schema may
// be a SchemaProvider, a raw mapping (map[string]any), or a JSON-schema
// string; anything else is rejected at encode time. A GuidedDecoding with no
// schema at all is a configuration error, since a schema is the only
// supported structured-output mechanism.
type GuidedDecoding struct {
	Schema any
}

// Empty reports whether no schema source was supplied.
func (g *GuidedDecoding) Empty() bool {
	if g.Schema == nil {
		return true
	}
	if s, ok := g.Schema.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// SchemaProvider is a structured-output schema object: it knows its own name
// and can export itself as a JSON-schema document.
type SchemaProvider interface {
	SchemaName() string
	JSONSchema() (json.RawMessage, error)
}

// reflectedSchema derives a schema from a Go type via reflection.
type reflectedSchema struct {
	name   string
	target any
}

// SchemaFor builds a SchemaProvider from a Go value, using reflection to
// export its JSON schema. The declared name is used verbatim in the
// response_format constraint.
func SchemaFor(name string, target any) SchemaProvider {
	return &reflectedSchema{name: name, target: target}
}

func (r *reflectedSchema) SchemaName() string {
	return r.name
}

func (r *reflectedSchema) JSONSchema() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(r.target)
	return json.Marshal(schema)
}
