package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/roundtable/internal/config"
	"github.com/run-bigpig/roundtable/internal/models"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Start the interactive menu",
	Args:  cobra.NoArgs,
	RunE:  runMenu,
}

func init() {
	rootCmd.AddCommand(menuCmd)
}

// menu 基于行输入的交互式菜单
type menu struct {
	ctx context.Context
	in  *bufio.Reader
	out io.Writer
	app *app
	eof bool
	// reload 配置变更后重新装配组件，为 nil 时不重载
	reload func() (*app, error)
}

func runMenu(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	m := newMenu(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a)
	m.reload = func() (*app, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		return newApp(ctx, cfg)
	}
	defer func() { m.app.Close() }()

	fmt.Fprintln(m.out, titleStyle.Render("\n欢迎使用圆桌会议系统!"))
	m.mainMenu()
	return nil
}

func newMenu(ctx context.Context, in io.Reader, out io.Writer, a *app) *menu {
	return &menu{ctx: ctx, in: bufio.NewReader(in), out: out, app: a}
}

// readLine 读取一行输入，输入结束后总是返回空串
func (m *menu) readLine(prompt string) string {
	fmt.Fprint(m.out, prompt)
	if m.eof {
		return ""
	}
	line, err := m.in.ReadString('\n')
	if err != nil {
		m.eof = true
	}
	return strings.TrimSpace(line)
}

func (m *menu) waitInput() {
	m.readLine(dimStyle.Render("\n按回车键继续..."))
}

func (m *menu) printMenu(title string, options []string) {
	printHeader(m.out, title)
	for i, opt := range options {
		fmt.Fprintf(m.out, "  %d. %s\n", i+1, opt)
	}
	fmt.Fprintln(m.out)
}

// choose 读取 0..max 的选择，输入结束时返回 0
func (m *menu) choose(max int) int {
	for {
		line := m.readLine(fmt.Sprintf("请选择 (0-%d): ", max))
		if m.eof && line == "" {
			return 0
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(m.out, "请输入数字")
			continue
		}
		if n >= 0 && n <= max {
			return n
		}
		fmt.Fprintln(m.out, "无效选择，请重新输入")
	}
}

// pick 从列表中选择一项，返回下标；取消或无效输入返回 -1
func (m *menu) pick(prompt string, count int) int {
	n, err := strconv.Atoi(m.readLine(prompt))
	if err != nil || n < 1 || n > count {
		return -1
	}
	return n - 1
}

func (m *menu) confirm(prompt string) bool {
	return strings.EqualFold(m.readLine(prompt), "y")
}

func (m *menu) mainMenu() {
	for {
		m.printMenu("圆桌会议系统", []string{"角色管理", "会议管理", "系统配置", "退出"})
		switch m.choose(4) {
		case 0, 4:
			fmt.Fprintln(m.out, "\n再见!")
			return
		case 1:
			m.personaMenu()
		case 2:
			m.meetingMenu()
		case 3:
			m.configMenu()
		}
	}
}

// ---- 角色管理 ----

func (m *menu) personaMenu() {
	for {
		m.printMenu("角色管理", []string{"创建角色", "删除角色", "列出角色", "查看角色详情", "返回主菜单"})
		switch m.choose(5) {
		case 0, 5:
			return
		case 1:
			m.createPersona()
		case 2:
			m.deletePersona()
		case 3:
			m.listPersonas()
		case 4:
			m.showPersona()
		}
		m.waitInput()
	}
}

func (m *menu) createPersona() {
	fmt.Fprintln(m.out, "\n--- 创建角色 ---")
	name := m.readLine("请输入角色名称: ")
	if name == "" {
		printErr(m.out, "角色名称不能为空")
		return
	}
	description := orPending(m.readLine("请输入角色描述: "))
	notes := orPending(m.readLine("请输入注意事项: "))

	p, err := m.app.personas.Create(name, description, notes)
	if err != nil {
		printErr(m.out, "创建失败: %v", err)
		return
	}
	printOK(m.out, "角色创建成功，ID: %s", p.ID)
}

// listPersonaChoices 打印带编号的角色列表
func (m *menu) listPersonaChoices() []models.Persona {
	personas, err := m.app.personas.List()
	if err != nil {
		printErr(m.out, "读取角色失败: %v", err)
		return nil
	}
	if len(personas) == 0 {
		fmt.Fprintln(m.out, "\n暂无角色")
		return nil
	}
	for i, p := range personas {
		fmt.Fprintf(m.out, "  %d. %s\n", i+1, personaLine(p))
	}
	return personas
}

func (m *menu) deletePersona() {
	fmt.Fprintln(m.out, "\n--- 删除角色 ---")
	personas := m.listPersonaChoices()
	if len(personas) == 0 {
		return
	}
	idx := m.pick("\n请选择要删除的角色 (0取消): ", len(personas))
	if idx < 0 {
		return
	}
	p := personas[idx]
	if !m.confirm(fmt.Sprintf("确认删除角色 '%s' 吗? (y/n): ", p.Name)) {
		return
	}
	if err := m.app.personas.Delete(p.ID); err != nil {
		printErr(m.out, "删除失败: %v", err)
		return
	}
	printOK(m.out, "角色已删除")
}

func (m *menu) listPersonas() {
	fmt.Fprintln(m.out, "\n--- 角色列表 ---")
	m.listPersonaChoices()
}

func (m *menu) showPersona() {
	fmt.Fprintln(m.out, "\n--- 查看角色 ---")
	personas := m.listPersonaChoices()
	if len(personas) == 0 {
		return
	}
	idx := m.pick("\n请选择要查看的角色 (0取消): ", len(personas))
	if idx < 0 {
		return
	}
	p := personas[idx]
	identity, ok := m.app.personas.Identity(p.ID)
	if !ok {
		printErr(m.out, "角色不存在")
		return
	}
	fmt.Fprintf(m.out, "\n--- [%s] %s ---\n\n%s\n", p.ID, p.Name, identity)
}

// ---- 会议管理 ----

func (m *menu) meetingMenu() {
	for {
		m.printMenu("会议管理", []string{"创建会议", "列出会议", "启动会议", "查看会议纪要", "继续讨论", "删除会议", "返回主菜单"})
		switch m.choose(7) {
		case 0, 7:
			return
		case 1:
			m.createMeeting()
		case 2:
			m.listMeetings()
		case 3:
			m.startMeeting()
		case 4:
			m.showMinutes()
		case 5:
			m.continueMeeting()
		case 6:
			m.deleteMeeting()
		}
		m.waitInput()
	}
}

func (m *menu) createMeeting() {
	personas, err := m.app.personas.List()
	if err != nil {
		printErr(m.out, "读取角色失败: %v", err)
		return
	}
	if len(personas) < 2 {
		printWarn(m.out, "\n需要至少2个角色才能创建会议")
		return
	}

	fmt.Fprintln(m.out, "\n--- 创建会议 ---")
	topic := m.readLine("请输入会议主题: ")
	if topic == "" {
		printErr(m.out, "会议主题不能为空")
		return
	}
	topic = m.refineTopic(topic)

	fmt.Fprintln(m.out, "\n可用角色:")
	for i, p := range personas {
		fmt.Fprintf(m.out, "  %d. %s\n", i+1, personaLine(p))
	}
	fmt.Fprintln(m.out, "\n请输入参与角色的编号（用逗号分隔，如1,2,3），输入完成后按回车:")
	selected := m.selectPersonas(personas)
	if len(selected) < 2 {
		printWarn(m.out, "至少需要选择2个角色")
		return
	}

	rounds := m.app.cfg.Meeting.DefaultRounds
	if line := m.readLine(fmt.Sprintf("\n请输入每角色发言次数 (默认%d): ", rounds)); line != "" {
		if n, err := strconv.Atoi(line); err == nil && n > 0 {
			rounds = n
		}
	}

	meeting, err := m.app.meetings.Create(topic, selected, rounds)
	if err != nil {
		printErr(m.out, "会议创建失败: %v", err)
		return
	}
	printOK(m.out, "会议创建成功，ID: %s", meeting.ID)
}

// refineTopic 让主持人分析主题，用户确认后采用优化结果
func (m *menu) refineTopic(topic string) string {
	fmt.Fprintln(m.out, dimStyle.Render("\n正在分析主题..."))
	improved, err := m.app.engine.Moderator().RefineTopic(m.ctx, topic, func(chunk string) {
		fmt.Fprint(m.out, chunk)
	})
	fmt.Fprintln(m.out)
	if err != nil {
		printWarn(m.out, "主题分析出错: %v", err)
		return topic
	}
	if improved == topic {
		return topic
	}

	printHeader(m.out, "主题分析")
	fmt.Fprintf(m.out, "原主题: %s\n优化后: %s\n", topic, improved)
	if m.confirm("\n是否使用优化后的主题? (y/n): ") {
		return improved
	}
	fmt.Fprintln(m.out, "使用原主题")
	return topic
}

// selectPersonas 读取逗号分隔的编号，直到得到有效选择或空输入
func (m *menu) selectPersonas(personas []models.Persona) []string {
	for {
		line := m.readLine("选择角色: ")
		if line == "" {
			return nil
		}
		var ids []string
		seen := map[string]bool{}
		valid := true
		for _, part := range strings.Split(line, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				valid = false
				break
			}
			if n < 1 || n > len(personas) {
				continue
			}
			id := personas[n-1].ID
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if valid && len(ids) > 0 {
			return ids
		}
		fmt.Fprintln(m.out, "无效输入，请重新输入")
	}
}

// meetingChoices 打印满足条件的会议，返回列表
func (m *menu) meetingChoices(filter func(*models.Meeting) bool) []*models.Meeting {
	all, err := m.app.meetings.List()
	if err != nil {
		printErr(m.out, "读取会议失败: %v", err)
		return nil
	}
	var list []*models.Meeting
	for _, mt := range all {
		if filter == nil || filter(mt) {
			list = append(list, mt)
		}
	}
	for i, mt := range list {
		fmt.Fprintf(m.out, "  %d. %s\n", i+1, meetingLine(mt))
	}
	return list
}

func (m *menu) listMeetings() {
	fmt.Fprintln(m.out, "\n--- 会议列表 ---")
	if len(m.meetingChoices(nil)) == 0 {
		fmt.Fprintln(m.out, "暂无会议")
	}
}

func (m *menu) startMeeting() {
	fmt.Fprintln(m.out, "\n--- 启动会议 ---")
	pending := m.meetingChoices(func(mt *models.Meeting) bool { return mt.Status != models.MeetingStatusCompleted })
	if len(pending) == 0 {
		fmt.Fprintln(m.out, "没有待开始的会议")
		return
	}
	idx := m.pick("\n请选择要启动的会议 (0取消): ", len(pending))
	if idx < 0 {
		return
	}
	if err := m.app.engine.Run(m.ctx, pending[idx].ID, nil, progressPrinter(m.out)); err != nil {
		printErr(m.out, "会议运行失败: %v", err)
		return
	}
	if err := printResult(m.out, m.app, pending[idx].ID); err != nil {
		printErr(m.out, "%v", err)
	}
}

func (m *menu) showMinutes() {
	fmt.Fprintln(m.out, "\n--- 查看会议纪要 ---")
	list := m.meetingChoices(nil)
	if len(list) == 0 {
		fmt.Fprintln(m.out, "暂无会议")
		return
	}
	idx := m.pick("\n请选择要查看的会议 (0取消): ", len(list))
	if idx < 0 {
		return
	}
	minutes, err := m.app.meetings.Minutes(list[idx].ID)
	if err != nil {
		printErr(m.out, "会议纪要文件不存在")
		return
	}
	fmt.Fprintf(m.out, "\n--- %s ---\n\n%s", list[idx].Topic, minutes)
}

func (m *menu) continueMeeting() {
	fmt.Fprintln(m.out, "\n--- 继续讨论 ---")
	done := m.meetingChoices(func(mt *models.Meeting) bool { return mt.Status == models.MeetingStatusCompleted })
	if len(done) == 0 {
		fmt.Fprintln(m.out, "没有已完成的会议")
		return
	}
	idx := m.pick("\n请选择要继续讨论的会议 (0取消): ", len(done))
	if idx < 0 {
		return
	}
	topic := m.readLine("请输入新主题: ")
	if topic == "" {
		printErr(m.out, "新主题不能为空")
		return
	}
	next, err := m.app.engine.Continue(m.ctx, done[idx].ID, topic, progressPrinter(m.out))
	if err != nil {
		printErr(m.out, "继续讨论失败: %v", err)
		return
	}
	if err := printResult(m.out, m.app, next.ID); err != nil {
		printErr(m.out, "%v", err)
	}
}

func (m *menu) deleteMeeting() {
	fmt.Fprintln(m.out, "\n--- 删除会议 ---")
	list := m.meetingChoices(nil)
	if len(list) == 0 {
		fmt.Fprintln(m.out, "暂无会议")
		return
	}
	idx := m.pick("\n请选择要删除的会议 (0取消): ", len(list))
	if idx < 0 {
		return
	}
	if !m.confirm(fmt.Sprintf("确认删除会议 '%s' 吗? (y/n): ", list[idx].Topic)) {
		return
	}
	if err := m.app.meetings.Delete(list[idx].ID); err != nil {
		printErr(m.out, "删除失败: %v", err)
		return
	}
	printOK(m.out, "会议已删除")
}

// ---- 系统配置 ----

func (m *menu) configMenu() {
	for {
		cfg := m.app.cfg
		keyState := "未设置"
		if cfg.AI.APIKey != "" {
			keyState = "已设置"
		}
		m.printMenu("系统配置", []string{
			"API密钥: " + keyState,
			"模型: " + m.app.modelName(),
			"API地址: " + cfg.AI.BaseURL,
			"提供商: " + string(cfg.AI.Provider),
			fmt.Sprintf("MCP服务器: %d个", len(cfg.EnabledMCPServers())),
			"返回主菜单",
		})

		var key, prompt string
		switch m.choose(6) {
		case 0, 6:
			return
		case 1:
			key, prompt = "ai.api_key", "请输入API密钥: "
		case 2:
			key, prompt = "ai.model", "请输入模型名称: "
		case 3:
			key, prompt = "ai.base_url", "请输入API地址: "
		case 4:
			key, prompt = "ai.provider", fmt.Sprintf("请输入提供商 %v: ", config.ValidProviders())
		case 5:
			m.mcpStatus()
			m.waitInput()
			continue
		}

		if value := m.readLine(prompt); value != "" {
			m.saveConfig(key, value)
		}
		m.waitInput()
	}
}

// mcpStatus 测试已启用的 MCP 服务器并列出其工具
func (m *menu) mcpStatus() {
	ids := mcpTargets(m.app, nil)
	fmt.Fprintln(m.out)
	if m.app.mcp != nil {
		testMCPServers(m.ctx, m.out, m.app, ids)
		if len(ids) > 0 {
			listMCPTools(m.ctx, m.out, m.app, ids)
		}
	}
	fmt.Fprintf(m.out, "\n在配置文件 %s 的 mcp_servers 下添加或修改服务器\n", configFileInUse())
}

// saveConfig 写入配置并重新装配组件
func (m *menu) saveConfig(key, value string) {
	if err := config.Set(key, value); err != nil {
		printErr(m.out, "保存失败: %v", err)
		return
	}
	printOK(m.out, "已保存")
	if m.reload == nil {
		return
	}
	a, err := m.reload()
	if err != nil {
		printErr(m.out, "配置无效: %v", err)
		return
	}
	m.app.Close()
	m.app = a
}
