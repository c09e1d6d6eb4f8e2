// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package roster

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the roster schema.
const SchemaID = "https://dungeondash.dev/schemas/roster.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jschema.Schema
	schemaErr      error
)

// GenerateSchema reflects a JSON Schema from the Roster type.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Roster{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Dungeon Dash Character Roster"
	schema.Description = "Schema for roster.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("ROSTER_SCHEMA_FAILED").With("operation", "marshal schema").Wrap(err)
	}
	return data, nil
}

// ValidateSchema checks YAML roster data against the roster schema.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.Code("ROSTER_INVALID").Errorf("roster data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("ROSTER_INVALID").With("operation", "parse yaml").Wrap(err)
	}

	sch, err := compiled()
	if err != nil {
		return err
	}

	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code("ROSTER_INVALID").Wrapf(err, "schema validation failed")
	}
	return nil
}

func compiled() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			schemaErr = oops.Code("ROSTER_SCHEMA_FAILED").With("operation", "parse schema").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("roster.schema.json", doc); err != nil {
			schemaErr = oops.Code("ROSTER_SCHEMA_FAILED").With("operation", "add resource").Wrap(err)
			return
		}
		compiledSchema, schemaErr = c.Compile("roster.schema.json")
		if schemaErr != nil {
			schemaErr = oops.Code("ROSTER_SCHEMA_FAILED").With("operation", "compile").Wrap(schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// toJSONTypes normalizes YAML-decoded values to the types the validator
// understands.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = toJSONTypes(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = toJSONTypes(v)
		}
		return out
	case string, int, int64, float64, bool, nil:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}

// FormatSchemaError renders the validator's findings without the wrapping
// prefixes, one per line. Errors that did not come from the validator are
// returned unchanged.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	var ve *jschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	// first line names the schema URL; the causes follow
	_, detail, ok := strings.Cut(ve.Error(), "\n")
	if !ok {
		return ve.Error()
	}
	lines := strings.Split(detail, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(strings.TrimSpace(line), "- ")
	}
	return strings.Join(lines, "\n")
}
