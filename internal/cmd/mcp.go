package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/roundtable/internal/adk/tools"
)

var configMCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Inspect configured MCP tool servers",
}

var configMCPTestCmd = &cobra.Command{
	Use:   "test [server-id]",
	Short: "Connect to MCP servers and report their status",
	Long: `Connect to each enabled MCP server (or only the given one) and report
whether the handshake succeeds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigMCPTest,
}

var configMCPToolsCmd = &cobra.Command{
	Use:   "tools [server-id]",
	Short: "List tools offered by MCP servers",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigMCPTools,
}

func init() {
	configCmd.AddCommand(configMCPCmd)
	configMCPCmd.AddCommand(configMCPTestCmd)
	configMCPCmd.AddCommand(configMCPToolsCmd)
}

func runConfigMCPTest(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		testMCPServers(cmd.Context(), cmd.OutOrStdout(), a, mcpTargets(a, args))
		return nil
	})
}

func runConfigMCPTools(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		listMCPTools(cmd.Context(), cmd.OutOrStdout(), a, mcpTargets(a, args))
		return nil
	})
}

// mcpTargets 指定了 ID 时只检查该服务器，否则检查全部已启用服务器
func mcpTargets(a *app, args []string) []string {
	if len(args) > 0 {
		return args
	}
	var ids []string
	for _, srv := range a.cfg.EnabledMCPServers() {
		ids = append(ids, srv.ID)
	}
	return ids
}

// testMCPServers 逐个测试连接并输出状态
func testMCPServers(ctx context.Context, w io.Writer, a *app, ids []string) {
	if len(ids) == 0 {
		printWarn(w, "未配置启用的 MCP 服务器")
		return
	}
	for _, id := range ids {
		st := a.mcp.TestConnection(ctx, id)
		if st.Connected {
			printOK(w, "%s: 连接成功", st.ID)
		} else {
			printErr(w, "%s: 连接失败: %s", st.ID, st.Error)
		}
	}
}

// listMCPTools 输出角色可用的工具声明与各服务器提供的工具
func listMCPTools(ctx context.Context, w io.Writer, a *app, ids []string) {
	if a.registry != nil {
		if def, ok := a.registry.Definition(tools.WebSearchToolName); ok {
			fmt.Fprintf(w, "角色可用工具: %s - %s\n", def.Name, def.Description)
		}
	}
	if len(ids) == 0 {
		printWarn(w, "未配置启用的 MCP 服务器")
		return
	}
	for _, id := range ids {
		list, err := a.mcp.GetServerTools(ctx, id)
		if err != nil {
			printErr(w, "%s: 获取工具列表失败: %v", id, err)
			continue
		}
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d)", id, len(list))))
		for _, t := range list {
			fmt.Fprintf(w, "  - %s: %s\n", t.Name, truncate(t.Description, 80))
		}
	}
}
