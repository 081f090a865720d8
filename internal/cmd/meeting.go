package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/roundtable/internal/meeting"
	"github.com/run-bigpig/roundtable/internal/models"
)

var meetingCmd = &cobra.Command{
	Use:   "meeting",
	Short: "Create, run and inspect meetings",
}

var meetingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List meetings in creation order",
	Args:  cobra.NoArgs,
	RunE:  runMeetingList,
}

var meetingCreateCmd = &cobra.Command{
	Use:   "create <topic> <persona-id> <persona-id> [persona-id...]",
	Short: "Create a meeting with at least two personas",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runMeetingCreate,
}

var meetingStartCmd = &cobra.Command{
	Use:   "start <meeting-id>",
	Short: "Run a meeting and print live progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingStart,
}

var meetingContinueCmd = &cobra.Command{
	Use:   "continue <meeting-id> <new-topic>",
	Short: "Start a new meeting that builds on a finished one",
	Long: `Create a new meeting with the same personas and rounds as a finished
meeting, and run it with the previous topic and conclusion as context.`,
	Args: cobra.ExactArgs(2),
	RunE: runMeetingContinue,
}

var meetingMinutesCmd = &cobra.Command{
	Use:   "minutes <meeting-id>",
	Short: "Print the meeting minutes",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingMinutes,
}

var meetingDeleteCmd = &cobra.Command{
	Use:   "delete <meeting-id>",
	Short: "Delete a meeting and its minutes",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingDelete,
}

var meetingRounds int

func init() {
	rootCmd.AddCommand(meetingCmd)
	meetingCmd.AddCommand(meetingListCmd)
	meetingCmd.AddCommand(meetingCreateCmd)
	meetingCmd.AddCommand(meetingStartCmd)
	meetingCmd.AddCommand(meetingContinueCmd)
	meetingCmd.AddCommand(meetingMinutesCmd)
	meetingCmd.AddCommand(meetingDeleteCmd)

	meetingCreateCmd.Flags().IntVarP(&meetingRounds, "rounds", "r", 0, "number of rounds (default meeting.default_rounds)")
}

func runMeetingList(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		list, err := a.meetings.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "暂无会议")
			return nil
		}
		for _, m := range list {
			fmt.Fprintln(out, meetingLine(m))
		}
		return nil
	})
}

func runMeetingCreate(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		rounds := meetingRounds
		if rounds == 0 {
			rounds = a.cfg.Meeting.DefaultRounds
		}
		m, err := a.meetings.Create(args[0], args[1:], rounds)
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "会议创建成功，ID: %s", m.ID)
		return nil
	})
}

func runMeetingStart(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		m, err := a.engine.Status(args[0])
		if err != nil {
			return err
		}
		if m.Status == models.MeetingStatusCompleted {
			return fmt.Errorf("会议已结束，如需继续讨论请使用 meeting continue")
		}
		out := cmd.OutOrStdout()
		if err := a.engine.Run(cmd.Context(), m.ID, nil, progressPrinter(out)); err != nil {
			return err
		}
		return printResult(out, a, m.ID)
	})
}

func runMeetingContinue(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		return continueAndReport(cmd.Context(), cmd.OutOrStdout(), a, args[0], args[1])
	})
}

// continueAndReport 以新主题延续已结束的会议并输出结果
func continueAndReport(ctx context.Context, out io.Writer, a *app, id, topic string) error {
	next, err := a.engine.Continue(ctx, id, topic, progressPrinter(out))
	if errors.Is(err, meeting.ErrMeetingNotCompleted) {
		return fmt.Errorf("会议 %s 尚未结束，请先使用 meeting start 运行", id)
	}
	if err != nil {
		return err
	}
	return printResult(out, a, next.ID)
}

func runMeetingMinutes(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		minutes, err := a.meetings.Minutes(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), minutes)
		return nil
	})
}

func runMeetingDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if err := a.meetings.Delete(args[0]); err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "会议已删除")
		return nil
	})
}

// progressPrinter 将讨论进度实时输出到终端
func progressPrinter(w io.Writer) meeting.ProgressCallback {
	return func(e meeting.ProgressEvent) {
		switch e.Type {
		case meeting.EventMeetingStart:
			printHeader(w, "开始会议: "+e.Content)
		case meeting.EventRoundStart:
			fmt.Fprintf(w, "\n%s\n\n", titleStyle.Render(fmt.Sprintf("--- 第 %d 轮 ---", e.Round)))
		case meeting.EventTurnStart:
			fmt.Fprintln(w, dimStyle.Render(e.PersonaName+" 发言中..."))
		case meeting.EventTurnSkip:
			printWarn(w, "警告: 角色 %s 的IDENTITY.md不存在，跳过", e.PersonaName)
		case meeting.EventTurnDone:
			fmt.Fprintf(w, "%s: %s\n", speakerStyle.Render(e.PersonaName), truncate(e.Content, 100))
		case meeting.EventRoundDone:
		case meeting.EventConsensus:
			printOK(w, "\n✓ 本轮结束，达成共识！")
		case meeting.EventConclusion:
			fmt.Fprintln(w, dimStyle.Render("\n结论已生成"))
		case meeting.EventMeetingDone:
			printHeader(w, "会议完成！")
		}
	}
}

// printResult 输出会议的共识与结论
func printResult(w io.Writer, a *app, id string) error {
	m, err := a.meetings.Get(id)
	if err != nil {
		return err
	}
	consensus := "未达成"
	if m.Consensus != "" {
		consensus = truncate(m.Consensus, 200)
	}
	fmt.Fprintf(w, "\n共识: %s\n\n结论: %s\n", consensus, m.Conclusion)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("\n会议纪要: %s", a.meetings.MinutesPath(m.ID))))
	return nil
}
