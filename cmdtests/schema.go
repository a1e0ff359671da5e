package cmdtests

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const recordSchemaText = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["uuid", "command", "version", "certname", "payload", "received"],
  "properties": {
    "id": {"type": "integer"},
    "uuid": {"type": "string", "minLength": 1},
    "command": {"type": "string", "minLength": 1},
    "version": {"type": "integer", "minimum": 0},
    "certname": {"type": "string", "minLength": 1},
    "producer_timestamp": {"type": "string"},
    "received": {"type": "string", "minLength": 1}
  }
}`

const callbackNoticeSchemaText = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["uuid", "status"],
  "properties": {
    "uuid": {"type": "string", "minLength": 1},
    "command": {"type": "string"},
    "certname": {"type": "string"},
    "status": {"enum": ["processed", "failed"]},
    "error": {"type": "string"}
  },
  "if": {"properties": {"status": {"const": "failed"}}},
  "then": {"required": ["error"]}
}`

var (
	recordSchema         = mustCompileSchema("record.json", recordSchemaText)
	callbackNoticeSchema = mustCompileSchema("callback-notice.json", callbackNoticeSchemaText)
)

func mustCompileSchema(name, text string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(text)); err != nil {
		panic(fmt.Sprintf("add %s schema: %s", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile %s schema: %s", name, err))
	}
	return schema
}

func validateAgainst(schema *jsonschema.Schema, kind string, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%s is not JSON: %w", kind, err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("%s %s does not match the expected shape: %w", kind, raw, err)
	}
	return nil
}

func validateRecord(raw []byte) error {
	return validateAgainst(recordSchema, "record", raw)
}

func validateCallbackNotice(raw []byte) error {
	return validateAgainst(callbackNoticeSchema, "callback notice", raw)
}
