package validate

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchemaJSON is the structural pre-pass schema: it only constrains
// field *types* and the top-level shape, never the semantic rules (those
// are enforced in validator.go so a single, specific error code and
// message can be produced for each semantic violation).
const envelopeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["protocolVersion", "requestId", "cert"],
  "properties": {
    "protocolVersion": {"type": "string", "minLength": 1},
    "requestId": {"type": "string", "minLength": 1},
    "appId": {"type": "string"},
    "correlationId": {"type": "string"},
    "metadata": {"type": "object"},
    "cert": {
      "type": "object",
      "required": ["certId"],
      "properties": {"certId": {"type": "string", "minLength": 1}}
    },
    "objects": {"type": "array"},
    "objectGroups": {"type": "array"}
  }
}`

var compiledEnvelopeSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://signbridge.local/schemas/request-envelope.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(envelopeSchemaJSON)); err != nil {
		panic(fmt.Sprintf("validate: failed to load envelope schema: %v", err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("validate: failed to compile envelope schema: %v", err))
	}
	compiledEnvelopeSchema = compiled
}

// checkSchema runs the structural pre-pass over the raw decoded envelope.
// It is intentionally loose: it exists to catch type mismatches (e.g.
// "metadata": "not an object") before the semantic checks run, not to
// enforce the exactly-one-of-objects/objectGroups rule or any other
// cross-field invariant.
func checkSchema(raw map[string]interface{}) error {
	if err := compiledEnvelopeSchema.Validate(raw); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
