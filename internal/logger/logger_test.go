package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false)
	SetGlobalLevel(WARN)
	t.Cleanup(func() {
		SetOutput(os.Stderr, true)
		SetGlobalLevel(INFO)
	})

	log := New("Test")
	log.Info("不应输出 %d", 1)
	log.Warn("应该输出 %d", 2)

	out := buf.String()
	if strings.Contains(out, "不应输出") {
		t.Fatalf("INFO 日志未被过滤: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "Test: 应该输出 2") {
		t.Fatalf("WARN 日志格式不符: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("关闭颜色后仍输出转义序列: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		" INFO ":  INFO,
		"warning": WARN,
		"Error":   ERROR,
		"unknown": INFO,
		"":        INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, 期望 %v", in, got, want)
		}
	}
}
