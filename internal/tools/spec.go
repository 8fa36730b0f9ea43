// Package tools holds the closed set of tools agents may call: registry
// queries, shell and kubectl execution, Kubernetes reads, arithmetic, unit
// conversion, file reads and web search.
package tools

import (
	"sort"

	"github.com/cloudwego/eino/schema"
)

// Spec describes a tool's interface as shown to a model.
type Spec struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  map[string]Param `json:"parameters,omitempty"`
	Dangerous   bool             `json:"dangerous,omitempty"`
}

// Param describes a single tool parameter.
type Param struct {
	Type        string   `json:"type"` // "string", "number", "boolean", "integer"
	Description string   `json:"description"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// ToolInfo converts the spec to an eino schema.ToolInfo.
func (s Spec) ToolInfo() *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: s.Name,
		Desc: s.Description,
	}

	if len(s.Parameters) > 0 {
		params := make(map[string]*schema.ParameterInfo, len(s.Parameters))
		for name, p := range s.Parameters {
			params[name] = &schema.ParameterInfo{
				Type:     paramTypeToDataType(p.Type),
				Desc:     p.Description,
				Required: p.Required,
				Enum:     p.Enum,
			}
		}
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}

	return info
}

// InputSchema renders the parameters as a JSON Schema object.
func (s Spec) InputSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	var required []string

	for name, p := range s.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop

		if p.Required {
			required = append(required, name)
		}
	}

	sort.Strings(required)

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func paramTypeToDataType(t string) schema.DataType {
	switch t {
	case "string":
		return schema.String
	case "number":
		return schema.Number
	case "integer":
		return schema.Integer
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
