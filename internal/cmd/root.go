package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/run-bigpig/roundtable/internal/config"
	"github.com/run-bigpig/roundtable/internal/logger"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "roundtable",
	Short: "Multi-persona round-table discussions",
	Long: `Roundtable runs structured discussions among AI personas.

Each persona speaks in turn for a fixed number of rounds until every
participant agrees in the same round, then a conclusion is written to
the meeting minutes. Without a subcommand the interactive menu starts.`,
	SilenceUsage: true,
	RunE:         runMenu,
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is <user config dir>/roundtable/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory for personas and meetings")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ROUNDTABLE")
	// e.g. ROUNDTABLE_AI_API_KEY for ai.api_key
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadConfig 读取并校验配置，同时按配置初始化日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", config.ValidationErrors(errs))
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logFile 当前打开的日志文件，重新加载配置时关闭
var logFile *os.File

func setupLogging(cfg config.LoggingConfig) error {
	logger.SetGlobalLevel(logger.ParseLevel(cfg.Level))
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if cfg.File == "" {
		logger.SetOutput(os.Stderr, true)
		return nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f
	logger.SetOutput(f, false)
	return nil
}
