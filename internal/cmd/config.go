package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/run-bigpig/roundtable/internal/config"
	"github.com/run-bigpig/roundtable/internal/embed"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and write it to the config file",
	Long: `Set a configuration value and write it to the config file.

Keys use dotted paths, for example:
  roundtable config set ai.model MiniMax-M2.5
  roundtable config set meeting.default_rounds 5`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config file: %s\n", configFileInUse())
	fmt.Fprintf(out, "data dir:    %s\n\n", cfg.Paths.ResolveDataDir())

	keys := viper.AllKeys()
	sort.Strings(keys)
	for _, key := range keys {
		if key == "config" {
			continue
		}
		fmt.Fprintf(out, "%s = %v\n", key, displayValue(key, viper.Get(key)))
	}

	for _, e := range cfg.Validate() {
		printWarn(out, "invalid: %s", e.Error())
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := config.Set(args[0], args[1]); err != nil {
		return err
	}
	printOK(cmd.OutOrStdout(), "%s 已保存到 %s", args[0], configFileInUse())
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path, err := writeConfigTemplate(configFileInUse(), force)
	if err != nil {
		return err
	}
	printOK(cmd.OutOrStdout(), "配置文件已写入 %s", path)
	return nil
}

// ErrConfigExists 配置文件已存在且未指定覆盖
var ErrConfigExists = errors.New("配置文件已存在")

// writeConfigTemplate 写入默认配置模板
func writeConfigTemplate(path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%w: %s（使用 --force 覆盖）", ErrConfigExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("检查配置文件失败: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := os.WriteFile(path, embed.ConfigTemplate, 0600); err != nil {
		return "", fmt.Errorf("写入配置失败: %w", err)
	}
	return path, nil
}

func configFileInUse() string {
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return config.ConfigFile()
}

// displayValue 隐藏密钥
func displayValue(key string, v any) any {
	if strings.HasSuffix(key, "api_key") {
		if s, _ := v.(string); s != "" {
			return "******"
		}
	}
	return v
}
