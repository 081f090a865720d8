package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return New("gpt-test", cfg)
}

func userRequest(text string) *model.LLMRequest {
	return &model.LLMRequest{
		Contents: []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}},
	}
}

func TestModelGenerate(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("意外的请求路径 %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"你好"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	})

	var responses []*model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), userRequest("hi"), false) {
		if err != nil {
			t.Fatalf("GenerateContent() 失败: %v", err)
		}
		responses = append(responses, resp)
	}
	if len(responses) != 1 {
		t.Fatalf("收到 %d 个响应, 期望 1", len(responses))
	}
	if got := responses[0].Content.Parts[0].Text; got != "你好" {
		t.Errorf("text = %q, 期望 你好", got)
	}
}

func TestModelGenerateStream(t *testing.T) {
	chunks := []string{
		`{"choices":[{"index":0,"delta":{"role":"assistant","content":"我"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"同意"}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"c1","type":"function","function":{"name":"web_search","arguments":"{\"query\""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"AI\"}"}}]},"finish_reason":"tool_calls"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":4,"total_tokens":11}}`,
	}
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var partials []string
	var final *model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), userRequest("hi"), true) {
		if err != nil {
			t.Fatalf("GenerateContent(stream) 失败: %v", err)
		}
		if resp.Partial {
			partials = append(partials, resp.Content.Parts[0].Text)
			continue
		}
		final = resp
	}

	if strings.Join(partials, "") != "我同意" {
		t.Errorf("增量片段 = %v, 期望 我 + 同意", partials)
	}
	if final == nil {
		t.Fatal("缺少最终响应")
	}
	if len(final.Content.Parts) != 2 {
		t.Fatalf("最终 parts = %d, 期望 2", len(final.Content.Parts))
	}
	call := final.Content.Parts[1].FunctionCall
	if call == nil || call.ID != "c1" || call.Args["query"] != "AI" {
		t.Errorf("聚合后的工具调用 = %+v", call)
	}
	if final.UsageMetadata == nil || final.UsageMetadata.TotalTokenCount != 11 {
		t.Errorf("usage = %+v", final.UsageMetadata)
	}
}
