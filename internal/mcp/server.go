// Package mcp provides an MCP server that exposes the skill and domain tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/skillrouter/internal/tools"
)

// Version is reported in the MCP implementation info.
var Version = "0.1.0"

// setsByName lets a filter name a whole tool set.
var setsByName = map[string]tools.Set{
	"router":     tools.RouterSet,
	"skills":     tools.RouterSet,
	"executor":   tools.ExecutorSet,
	"kubernetes": tools.KubernetesSet,
	"shell":      tools.ShellSet,
}

// Select resolves a filter into the tools to expose. The filter is a
// comma-separated list of tool names or set names (router, skills, executor,
// kubernetes, shell, all). An empty filter exposes every tool not marked
// dangerous.
func Select(d *tools.Dispatcher, filter string) (tools.Set, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		var out tools.Set
		for _, spec := range d.Specs() {
			if !spec.Dangerous {
				out = append(out, tools.ID(spec.Name))
			}
		}
		return out, nil
	}

	seen := make(map[tools.ID]bool)
	var out tools.Set
	add := func(ids ...tools.ID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	for _, name := range strings.Split(filter, ",") {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
		case name == "all":
			add(tools.IDs()...)
		case setsByName[name] != nil:
			add(setsByName[name]...)
		default:
			id, ok := tools.ParseID(name)
			if !ok {
				return nil, fmt.Errorf("mcp filter: unknown tool or set %q", name)
			}
			add(id)
		}
	}
	return out, nil
}

// NewMCPServer creates an MCP server exposing the dispatcher tools selected
// by filter (see Select).
func NewMCPServer(d *tools.Dispatcher, filter string) (*mcpsdk.Server, error) {
	set, err := Select(d, filter)
	if err != nil {
		return nil, err
	}

	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "skillrouter",
		Version: Version,
	}, nil)

	for _, id := range set {
		spec, ok := d.Spec(id)
		if !ok {
			continue
		}
		server.AddTool(&mcpsdk.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema(),
		}, handler(d, id))

		slog.Debug("mcp tool registered", "tool", id)
	}
	return server, nil
}

func handler(d *tools.Dispatcher, id tools.ID) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := string(req.Params.Arguments)
		result, err := d.Call(ctx, id, args)
		if err != nil {
			slog.Debug("mcp tool error", "tool", id, "error", err)
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result}},
		}, nil
	}
}
