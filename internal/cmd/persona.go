package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var personaCmd = &cobra.Command{
	Use:     "persona",
	Aliases: []string{"role"},
	Short:   "Manage discussion personas",
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List personas sorted by name",
	Args:  cobra.NoArgs,
	RunE:  runPersonaList,
}

var personaCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a persona",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonaCreate,
}

var personaDeleteCmd = &cobra.Command{
	Use:   "delete <persona-id>",
	Short: "Delete a persona and its identity document",
	Long: `Delete a persona and its identity document.

Meetings that reference the persona are kept; its turns are skipped when
those meetings run.`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonaDelete,
}

var personaShowCmd = &cobra.Command{
	Use:   "show <persona-id>",
	Short: "Print a persona's identity document",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonaShow,
}

var (
	personaDescription string
	personaNotes       string
)

func init() {
	rootCmd.AddCommand(personaCmd)
	personaCmd.AddCommand(personaListCmd)
	personaCmd.AddCommand(personaCreateCmd)
	personaCmd.AddCommand(personaDeleteCmd)
	personaCmd.AddCommand(personaShowCmd)

	personaCreateCmd.Flags().StringVarP(&personaDescription, "description", "d", "", "persona description")
	personaCreateCmd.Flags().StringVarP(&personaNotes, "notes", "n", "", "notes appended to the identity document")
}

func runPersonaList(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		personas, err := a.personas.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(personas) == 0 {
			fmt.Fprintln(out, "暂无角色")
			return nil
		}
		for _, p := range personas {
			fmt.Fprintln(out, personaLine(p))
		}
		return nil
	})
}

func runPersonaCreate(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		p, err := a.personas.Create(args[0], orPending(personaDescription), orPending(personaNotes))
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "角色创建成功，ID: %s", p.ID)
		return nil
	})
}

func runPersonaDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if err := a.personas.Delete(args[0]); err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "角色已删除")
		return nil
	})
}

func runPersonaShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		identity, ok := a.personas.Identity(args[0])
		if !ok {
			return fmt.Errorf("角色不存在: %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), identity)
		return nil
	})
}

// orPending 空输入使用占位文本
func orPending(s string) string {
	if s == "" {
		return "（待填写）"
	}
	return s
}
