package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/run-bigpig/roundtable/internal/services/search"
)

type fakeMCP struct {
	servers bool
	calls   []string
}

func (f *fakeMCP) HasServers() bool { return f.servers }

func (f *fakeMCP) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	return "mcp:" + args["query"].(string), nil
}

type fakeSearcher struct {
	err error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*search.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &search.Response{Query: query, Results: []search.Result{{Title: "结果", URL: "https://example.com"}}}, nil
}

func TestWebSearchSchema(t *testing.T) {
	raw, err := json.Marshal(WebSearchDefinition.InputSchema)
	if err != nil {
		t.Fatal(err)
	}
	var s struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatal(err)
	}
	if s.Type != "object" {
		t.Errorf("type = %q, 期望 object", s.Type)
	}
	if _, ok := s.Properties["query"]; !ok {
		t.Errorf("properties = %s, 缺少 query", raw)
	}
	if len(s.Required) != 1 || s.Required[0] != "query" {
		t.Errorf("required = %v, 期望 [query]", s.Required)
	}
}

func TestDeclarations(t *testing.T) {
	r := NewRegistry(nil, nil)
	decls := r.Declarations([]string{"web_search", "unknown"})
	if len(decls) != 1 || decls[0].Name != WebSearchToolName {
		t.Fatalf("Declarations() = %+v", decls)
	}
	if decls[0].ParametersJsonSchema == nil {
		t.Error("函数声明应带参数 schema")
	}
}

func TestExecuteOrder(t *testing.T) {
	ctx := context.Background()
	args := map[string]any{"query": "今年"}

	t.Run("mcp first", func(t *testing.T) {
		mcp := &fakeMCP{servers: true}
		r := NewRegistry(mcp, &fakeSearcher{})
		got, err := r.Execute(ctx, WebSearchToolName, args)
		if err != nil || got != "mcp:今年" {
			t.Fatalf("Execute() = %q, %v", got, err)
		}
		if len(mcp.calls) != 1 {
			t.Errorf("MCP 调用 = %v", mcp.calls)
		}
	})

	t.Run("builtin search", func(t *testing.T) {
		r := NewRegistry(&fakeMCP{servers: false}, &fakeSearcher{})
		got, err := r.Execute(ctx, WebSearchToolName, args)
		if err != nil || !strings.Contains(got, "https://example.com") {
			t.Fatalf("Execute() = %q, %v", got, err)
		}
	})

	t.Run("builtin search error", func(t *testing.T) {
		r := NewRegistry(nil, &fakeSearcher{err: errors.New("offline")})
		if _, err := r.Execute(ctx, WebSearchToolName, args); err == nil {
			t.Fatal("期望返回错误")
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		r := NewRegistry(nil, nil)
		got, err := r.Execute(ctx, WebSearchToolName, args)
		if err != nil {
			t.Fatal(err)
		}
		if got != "Tool 'web_search' not available - no MCP server configured" {
			t.Errorf("Execute() = %q", got)
		}
	})
}
