package convo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/BaSui01/aihub/types"
)

const historySchemaURL = "aihub://history.schema.json"

// historySchema accepts a list of turns whose parts carry exactly one of
// text or image.
const historySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["role", "parts"],
    "properties": {
      "role": {"type": "string", "enum": ["user", "model", "assistant"]},
      "parts": {
        "type": "array",
        "items": {
          "type": "object",
          "minProperties": 1,
          "maxProperties": 1,
          "additionalProperties": false,
          "properties": {
            "text": {"type": "string"},
            "image": {"type": "string"}
          }
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(historySchemaURL, strings.NewReader(historySchema)); err != nil {
			compileErr = err
			return
		}
		compiledSchema, compileErr = compiler.Compile(historySchemaURL)
	})
	return compiledSchema, compileErr
}

// ParseHistory decodes a serialized history strictly as data. Empty input
// and JSON null yield an empty history. Anything that is not a list of
// well-formed turns is a validation error.
func ParseHistory(raw []byte) ([]types.ConversationTurn, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, invalidHistory("not valid JSON", nil)
	}
	if !gjson.ParseBytes(raw).IsArray() {
		return nil, invalidHistory("expected a list of turns", nil)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, invalidHistory("not valid JSON", err)
	}
	sch, err := schema()
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "history schema unavailable").WithCause(err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, invalidHistory(schemaReason(err), err)
	}

	var turns []types.ConversationTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, invalidHistory("malformed turn", err)
	}
	for i := range turns {
		turns[i].Role = turns[i].Role.Normalize()
	}
	return turns, nil
}

// ParseHistoryString is ParseHistory for form values.
func ParseHistoryString(raw string) ([]types.ConversationTurn, error) {
	return ParseHistory([]byte(raw))
}

func invalidHistory(reason string, cause error) *types.Error {
	return types.NewValidationError(fmt.Sprintf("Invalid history format: %s", reason)).WithCause(cause)
}

func schemaReason(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Sprintf("%s: %s", loc, leaf.Message)
	}
	return err.Error()
}
