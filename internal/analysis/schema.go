package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Upstream payloads arrive untyped. Every response is validated against an
// embedded schema before decoding so that malformed data is rejected at the
// boundary instead of leaking zero-valued fields into the diagram layer.

const resultSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["git_ref"],
	"properties": {
		"job_id": {"type": "string"},
		"repo_path": {"type": "string"},
		"git_ref": {"type": "string"},
		"file_count": {"type": ["integer", "null"], "minimum": 0},
		"symbol_count": {"type": ["integer", "null"], "minimum": 0},
		"mermaid_diagram": {"type": ["string", "null"]},
		"warnings": {"type": ["array", "null"], "items": {"type": "string"}},
		"dependency_graph": {
			"type": "object",
			"required": ["nodes", "edges"],
			"properties": {
				"nodes": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["id"],
						"properties": {
							"id": {"type": "string"},
							"label": {"type": ["string", "null"]}
						}
					}
				},
				"edges": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["source", "target"],
						"properties": {
							"source": {"type": "string"},
							"target": {"type": "string"},
							"relationship": {"type": ["string", "null"]}
						}
					}
				}
			}
		},
		"code_facts": {
			"type": "object",
			"properties": {
				"symbols": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["name", "file"],
						"properties": {
							"name": {"type": "string"},
							"file": {"type": "string"}
						}
					}
				},
				"function_calls": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["from_function", "to_function"],
						"properties": {
							"from_function": {"type": "string"},
							"to_function": {"type": "string"},
							"file": {"type": ["string", "null"]},
							"line": {"type": ["integer", "null"]}
						}
					}
				}
			}
		}
	}
}`

const callFlowSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["start_method", "calls"],
	"properties": {
		"start_method": {"type": "string"},
		"max_depth": {"type": "integer"},
		"total_calls": {"type": "integer", "minimum": 0},
		"message": {"type": ["string", "null"]},
		"calls": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["from", "to"],
				"properties": {
					"from": {"type": "string"},
					"to": {"type": "string"},
					"file": {"type": ["string", "null"]},
					"line": {"type": ["integer", "null"]},
					"depth": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

var (
	schemaOnce     sync.Once
	compiledResult *jsonschema.Schema
	compiledFlow   *jsonschema.Schema
	schemaErr      error
)

func compileSchemas() {
	compile := func(name, src string) *jsonschema.Schema {
		if schemaErr != nil {
			return nil
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
			schemaErr = fmt.Errorf("add schema %s: %w", name, err)
			return nil
		}
		compiled, err := compiler.Compile(name)
		if err != nil {
			schemaErr = fmt.Errorf("compile schema %s: %w", name, err)
			return nil
		}
		return compiled
	}
	compiledResult = compile("analysis_result.json", resultSchema)
	compiledFlow = compile("call_flow.json", callFlowSchema)
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	return nil
}

// ParseResult validates and decodes an upstream analysis result payload.
func ParseResult(data []byte) (*Result, error) {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	if err := validate(compiledResult, data); err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// ParseCallFlow validates and decodes an upstream call-flow payload.
func ParseCallFlow(data []byte) (*CallFlow, error) {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	if err := validate(compiledFlow, data); err != nil {
		return nil, err
	}
	var flow CallFlow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("decode call flow: %w", err)
	}
	return &flow, nil
}
