package mcp

import (
	"context"
	"sort"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/skillrouter/internal/skills"
	"github.com/dohr-michael/skillrouter/internal/tools"
)

func testDispatcher() *tools.Dispatcher {
	reg := skills.NewRegistry([]skills.Skill{
		{Name: "math_skill", Description: "Arithmetic.", Content: "Use the calculator tool.\n"},
	})
	return tools.NewDispatcher(reg, tools.Options{})
}

func TestSelect(t *testing.T) {
	d := testDispatcher()

	tests := []struct {
		filter string
		want   []string
	}{
		{"load_skill", []string{"load_skill"}},
		{"router", []string{"list_skills", "load_skill"}},
		{"skills, calculator", []string{"list_skills", "load_skill", "calculator"}},
		{"shell,shell_command", []string{"shell_command"}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := Select(d, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(got.Names(), ",") != strings.Join(tt.want, ",") {
				t.Errorf("Select(%q) = %v, want %v", tt.filter, got.Names(), tt.want)
			}
		})
	}
}

func TestSelect_DefaultSkipsDangerous(t *testing.T) {
	got, err := Select(testDispatcher(), "")
	if err != nil {
		t.Fatal(err)
	}
	names := strings.Join(got.Names(), ",")
	if !strings.Contains(names, "load_skill") || !strings.Contains(names, "calculator") {
		t.Errorf("default selection = %s", names)
	}
	if strings.Contains(names, "kubectl_exec") {
		t.Errorf("dangerous tools should need an explicit filter: %s", names)
	}
}

func TestSelect_All(t *testing.T) {
	got, err := Select(testDispatcher(), "all")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(tools.IDs()) {
		t.Errorf("all = %d tools, want %d", len(got), len(tools.IDs()))
	}
}

func TestSelect_Unknown(t *testing.T) {
	if _, err := Select(testDispatcher(), "router,helm"); err == nil {
		t.Fatal("expected an error for an unknown filter entry")
	}
	if _, err := NewMCPServer(testDispatcher(), "helm"); err == nil {
		t.Fatal("NewMCPServer should reject an unknown filter")
	}
}

// connect runs the server over in-memory transports and returns a client
// session.
func connect(t *testing.T, server *mcpsdk.Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverT, clientT := mcpsdk.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func textOf(res *mcpsdk.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestMCPServer_ListAndCall(t *testing.T) {
	server, err := NewMCPServer(testDispatcher(), "router,calculator")
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, server)
	ctx := context.Background()

	list, err := cs.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "calculator,list_skills,load_skill" {
		t.Errorf("tools = %v", names)
	}

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "load_skill",
		Arguments: map[string]any{"skill_name": "math_skill"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError || !strings.HasPrefix(textOf(res), "Loaded skill: math_skill") {
		t.Errorf("load_skill = %+v (%q)", res, textOf(res))
	}

	res, err = cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "calculator",
		Arguments: map[string]any{"expression": "(100 - 20) / 4"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if textOf(res) != "20.0" {
		t.Errorf("calculator = %q", textOf(res))
	}
}

func TestMCPServer_ArgumentErrorIsToolError(t *testing.T) {
	server, err := NewMCPServer(testDispatcher(), "load_skill")
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, server)

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "load_skill",
		Arguments: map[string]any{"skill_name": "  "},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError || !strings.Contains(textOf(res), "skill_name is required") {
		t.Errorf("result = %+v (%q)", res, textOf(res))
	}
}
