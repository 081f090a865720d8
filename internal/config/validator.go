package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/run-bigpig/roundtable/internal/models"
)

// ValidationError 单个配置项校验失败
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors 多个校验失败
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidProviders 支持的模型提供商
func ValidProviders() []string {
	return []string{
		string(models.AIProviderAnthropic),
		string(models.AIProviderOpenAI),
		string(models.AIProviderGemini),
	}
}

// ValidLogLevels 支持的日志级别
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate 校验配置，返回全部错误
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidProviders(), string(c.AI.Provider)) {
		errs = append(errs, ValidationError{
			Field:   "ai.provider",
			Value:   c.AI.Provider,
			Message: fmt.Sprintf("must be one of %v", ValidProviders()),
		})
	}
	if c.AI.ModelName == "" {
		errs = append(errs, ValidationError{Field: "ai.model", Value: c.AI.ModelName, Message: "must not be empty"})
	}
	if c.AI.MaxTokens < 1 {
		errs = append(errs, ValidationError{Field: "ai.max_tokens", Value: c.AI.MaxTokens, Message: "must be at least 1"})
	}

	if c.Meeting.DefaultRounds < 1 {
		errs = append(errs, ValidationError{Field: "meeting.default_rounds", Value: c.Meeting.DefaultRounds, Message: "must be at least 1"})
	}
	if c.Meeting.MaxToolIterations < 1 {
		errs = append(errs, ValidationError{Field: "meeting.max_tool_iterations", Value: c.Meeting.MaxToolIterations, Message: "must be at least 1"})
	}
	if c.Meeting.TurnTimeoutSeconds < 0 {
		errs = append(errs, ValidationError{Field: "meeting.turn_timeout", Value: c.Meeting.TurnTimeoutSeconds, Message: "must be non-negative"})
	}
	if c.Meeting.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "meeting.max_retries", Value: c.Meeting.MaxRetries, Message: "must be non-negative"})
	}
	if c.Meeting.RetryBaseDelayMs < 0 {
		errs = append(errs, ValidationError{Field: "meeting.retry_base_delay", Value: c.Meeting.RetryBaseDelayMs, Message: "must be non-negative"})
	}

	if c.Search.MaxResults < 1 {
		errs = append(errs, ValidationError{Field: "search.max_results", Value: c.Search.MaxResults, Message: "must be at least 1"})
	}
	if c.Search.CacheTTLMinutes < 0 {
		errs = append(errs, ValidationError{Field: "search.cache_ttl", Value: c.Search.CacheTTLMinutes, Message: "must be non-negative"})
	}

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}

	errs = append(errs, c.validateMCPServers()...)
	return errs
}

func (c *Config) validateMCPServers() []ValidationError {
	var errs []ValidationError
	for id, srv := range c.MCPServers {
		field := "mcp_servers." + id
		switch srv.TransportType {
		case models.MCPTransportCommand, "":
			if srv.Command == "" {
				errs = append(errs, ValidationError{Field: field + ".command", Value: srv.Command, Message: "required for command transport"})
			}
		case models.MCPTransportSSE, models.MCPTransportHTTP:
			if srv.Endpoint == "" {
				errs = append(errs, ValidationError{Field: field + ".endpoint", Value: srv.Endpoint, Message: "required for sse/http transport"})
			}
		default:
			errs = append(errs, ValidationError{Field: field + ".transport", Value: srv.TransportType, Message: "must be command, sse or http"})
		}
	}
	return errs
}
