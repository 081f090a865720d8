package embed

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestConfigTemplateParses(t *testing.T) {
	var doc map[string]any
	if err := yaml.Unmarshal(ConfigTemplate, &doc); err != nil {
		t.Fatalf("配置模板不是合法 YAML: %v", err)
	}
	for _, key := range []string{"ai", "mcp_servers", "meeting", "search", "logging", "paths"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("配置模板缺少 %q 段", key)
		}
	}
}
