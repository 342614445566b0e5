// Command aslan-mcp exposes a single MCP tool, parse_aslan, that runs
// the ASLAN parser over whatever text an agent sends it and returns the
// resulting tree as structured JSON.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/jayfoss/go-aslan/aslan"
)

// ToolDef describes one MCP tool this server exposes: its name,
// description, JSON input schema, and the handler that runs it.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     func(params json.RawMessage) (any, error)
}

// Registry holds every MCP tool this server exposes.
type Registry struct {
	tools []ToolDef
}

// NewRegistry builds the registry with its one tool.
func NewRegistry() *Registry {
	r := &Registry{}
	r.tools = []ToolDef{r.toolParseASLAN()}
	return r
}

// Tools returns all registered MCP tools.
func (r *Registry) Tools() []ToolDef { return r.tools }

// HandleTool dispatches a tool call by name.
func (r *Registry) HandleTool(name string, params json.RawMessage) (any, error) {
	for _, t := range r.tools {
		if t.Name == name {
			return t.Handler(params)
		}
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

type parseASLANParams struct {
	Document    string `json:"document" jsonschema:"required,description=The ASLAN document text to parse"`
	Prefix      string `json:"prefix,omitempty" jsonschema:"description=Delimiter prefix,default=aslan"`
	StrictStart bool   `json:"strict_start,omitempty" jsonschema:"description=Require [aslang] before content is recognized"`
	StrictEnd   bool   `json:"strict_end,omitempty" jsonschema:"description=Require [aslans] to finalize a document"`
	Multi       bool   `json:"multi,omitempty" jsonschema:"description=Return every Go/Stop-framed document instead of just one"`
}

func (r *Registry) toolParseASLAN() ToolDef {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&parseASLANParams{})
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		schemaBytes = json.RawMessage(`{"type":"object"}`)
	}

	return ToolDef{
		Name:        "parse_aslan",
		Description: "Parses an ASLAN bracket-delimited markup document and returns its tree as JSON.",
		InputSchema: schemaBytes,
		Handler: func(params json.RawMessage) (any, error) {
			var p parseASLANParams
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("invalid params: %w", err)
			}
			if p.Document == "" {
				return nil, fmt.Errorf("document is required")
			}
			prefix := p.Prefix
			if prefix == "" {
				prefix = "aslan"
			}
			opts := []aslan.Option{
				aslan.WithPrefix(prefix),
				aslan.WithStrictStart(p.StrictStart),
				aslan.WithStrictEnd(p.StrictEnd),
			}
			if p.Multi {
				results, err := aslan.ParseMulti(p.Document, opts...)
				if err != nil {
					return nil, err
				}
				return results, nil
			}
			result, err := aslan.Parse(p.Document, opts...)
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	}
}
