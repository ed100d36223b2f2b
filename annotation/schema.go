package annotation

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseURL = "https://schemas.telco.local/annotation/"

var schemaSources = map[FactKind]string{
	KindLocation: `{
		"type": "object",
		"properties": {
			"street":     {"type": "string"},
			"address":    {"type": "string"},
			"city":       {"type": "string"},
			"district":   {"type": "string"},
			"province":   {"type": "string"},
			"postalCode": {"type": ["string", "number"]}
		}
	}`,
	KindServices: `{
		"oneOf": [
			{"type": "array", "items": {"$ref": "#/$defs/service"}},
			{
				"type": "object",
				"required": ["services"],
				"properties": {"services": {"type": "array", "items": {"$ref": "#/$defs/service"}}}
			}
		],
		"$defs": {
			"service": {
				"oneOf": [
					{"type": "string"},
					{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}
				]
			}
		}
	}`,
	KindInfrastructure: `{
		"type": "object",
		"properties": {
			"fiber":     {"$ref": "#/$defs/availability"},
			"copper":    {"$ref": "#/$defs/availability"},
			"wireless":  {"$ref": "#/$defs/availability"},
			"checkedAt": {"type": "string"}
		},
		"$defs": {
			"availability": {
				"oneOf": [
					{"type": "boolean"},
					{
						"type": "object",
						"properties": {"available": {"type": "boolean"}, "maxSpeed": {"type": "string"}}
					}
				]
			}
		}
	}`,
	KindAreaMatch: `{
		"type": "object",
		"properties": {
			"matched":  {"type": "boolean"},
			"areaName": {"type": "string"},
			"area":     {"type": "string"},
			"result":   {"type": "string"}
		}
	}`,
}

var schemas = mustCompileSchemas()

func mustCompileSchemas() map[FactKind]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	for kind, src := range schemaSources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			panic(fmt.Sprintf("annotation: bad %s schema: %v", kind, err))
		}
		if err := c.AddResource(schemaBaseURL+kind.String()+".json", doc); err != nil {
			panic(fmt.Sprintf("annotation: add %s schema: %v", kind, err))
		}
	}
	out := make(map[FactKind]*jsonschema.Schema, len(schemaSources))
	for kind := range schemaSources {
		sch, err := c.Compile(schemaBaseURL + kind.String() + ".json")
		if err != nil {
			panic(fmt.Sprintf("annotation: compile %s schema: %v", kind, err))
		}
		out[kind] = sch
	}
	return out
}

// validatePayload checks raw JSON against the schema of kind.
func validatePayload(kind FactKind, raw []byte) error {
	sch, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for %s", kind)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
