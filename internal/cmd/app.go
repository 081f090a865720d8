package cmd

import (
	"context"
	"fmt"

	"github.com/run-bigpig/roundtable/internal/adk"
	mcpclient "github.com/run-bigpig/roundtable/internal/adk/mcp"
	"github.com/run-bigpig/roundtable/internal/adk/tools"
	"github.com/run-bigpig/roundtable/internal/config"
	"github.com/run-bigpig/roundtable/internal/meeting"
	"github.com/run-bigpig/roundtable/internal/persona"
	"github.com/run-bigpig/roundtable/internal/services/search"
)

// app 一次命令执行所需的全部组件
type app struct {
	cfg      *config.Config
	dataDir  string
	personas *persona.Store
	meetings *meeting.Store
	engine   *meeting.Service
	mcp      *mcpclient.Manager
	gateway  *adk.Gateway
	registry *tools.Registry
}

// newApp 按配置装配存储、工具、模型网关与讨论引擎
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dataDir := cfg.Paths.ResolveDataDir()

	personas, err := persona.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open persona store: %w", err)
	}
	meetings, err := meeting.NewStore(dataDir, personas)
	if err != nil {
		return nil, fmt.Errorf("failed to open meeting store: %w", err)
	}

	mgr := mcpclient.NewManager()
	mgr.LoadConfigs(cfg.EnabledMCPServers())

	var searcher tools.WebSearcher
	if cfg.Search.Builtin {
		svc, err := search.NewService(dataDir, cfg.Search.CacheTTL(), cfg.Search.MaxResults, nil)
		if err != nil {
			mgr.Close()
			return nil, fmt.Errorf("failed to init search: %w", err)
		}
		searcher = svc
	}
	registry := tools.NewRegistry(mgr, searcher)

	gateway, err := adk.NewModelFactory().CreateGateway(ctx, &cfg.AI,
		adk.WithToolExecutor(registry),
		adk.WithMaxToolIterations(cfg.Meeting.MaxToolIterations))
	if err != nil {
		mgr.Close()
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	engine := meeting.NewService(meetings, personas, gateway,
		meeting.WithTurnTimeout(cfg.Meeting.TurnTimeout()),
		meeting.WithMaxRetries(cfg.Meeting.MaxRetries),
		meeting.WithRetryBaseDelay(cfg.Meeting.RetryBaseDelay()),
		meeting.WithMaxOutputTokens(cfg.AI.MaxTokens))

	return &app{
		cfg:      cfg,
		dataDir:  dataDir,
		personas: personas,
		meetings: meetings,
		engine:   engine,
		mcp:      mgr,
		gateway:  gateway,
		registry: registry,
	}, nil
}

func (a *app) Close() {
	if a != nil && a.mcp != nil {
		a.mcp.Close()
	}
}

// modelName 网关实际使用的模型名，未装配网关时取配置值
func (a *app) modelName() string {
	if a.gateway != nil {
		return a.gateway.ModelName()
	}
	return a.cfg.AI.ModelName
}

// withApp 加载配置并装配组件后执行 fn
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
