package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/advisor"
	"github.com/spigell/jobfit/internal/conversation"
	"github.com/spigell/jobfit/internal/session"
	"github.com/spigell/jobfit/internal/utils"
)

const (
	PromptAsk     = "Ask about the job"
	PromptAnalyze = "Analyze CV vs Job Fit"
	PromptLoadCV  = "Load CV file"
	PromptLoadJob = "Load job listing URL"
	PromptHistory = "Show conversation"
	PromptClear   = "Clear all"
	PromptExit    = "Exit"

	analysisHeading = "### Fit Analysis"
	previewLength   = 500
)

var (
	assistantLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
	userLabel      = color.New(color.FgGreen, color.Bold).SprintFunc()
	headingStyle   = color.New(color.Bold).SprintFunc()

	noticeColors = map[session.Level]*color.Color{
		session.LevelSuccess: color.New(color.FgGreen),
		session.LevelInfo:    color.New(color.FgBlue),
		session.LevelWarning: color.New(color.FgYellow),
		session.LevelError:   color.New(color.FgRed),
	}
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the advisor in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cvPath, _ := cmd.Flags().GetString("cv")
		jobURL, _ := cmd.Flags().GetString("job")
		return runChat(cmd.Context(), cvPath, jobURL)
	},
}

func init() {
	chatCmd.Flags().String("cv", "", "path to a CV file (pdf, xml or docx) to load on start")
	chatCmd.Flags().String("job", "", "job listing URL to load on start")

	rootCmd.AddCommand(chatCmd)
}

// console drives a single advisor session from the terminal.
type console struct {
	advisor *advisor.Advisor
	session *session.Session
	out     io.Writer
}

func newConsole(adv *advisor.Advisor, out io.Writer) *console {
	return &console{
		advisor: adv,
		session: session.New(uuid.NewString()),
		out:     out,
	}
}

func runChat(ctx context.Context, cvPath, jobURL string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	c := newConsole(newAdvisor(ctx, logger, config), os.Stdout)
	c.greet()

	if cvPath != "" {
		c.loadCV(ctx, cvPath)
	}
	if jobURL != "" {
		c.loadJob(ctx, jobURL)
	}

	for {
		selector := promptui.Select{
			Label: "What next?",
			Items: c.actions(),
			Size:  len(c.actions()),
		}

		_, selected, err := selector.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}

		switch selected {
		case PromptAsk:
			question, err := ask("Your question")
			if err != nil {
				continue
			}
			c.ask(ctx, question)
		case PromptAnalyze:
			c.analyze(ctx)
		case PromptLoadCV:
			path, err := ask("Path to CV file")
			if err != nil {
				continue
			}
			c.loadCV(ctx, path)
		case PromptLoadJob:
			url, err := ask("Job listing URL")
			if err != nil {
				continue
			}
			c.loadJob(ctx, url)
		case PromptHistory:
			c.history()
		case PromptClear:
			c.reset()
		case PromptExit:
			return nil
		}
	}
}

func ask(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return advisor.ErrEmptyInput
			}
			return nil
		},
	}

	value, err := p.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(value), nil
}

// actions lists the menu entries available in the current session state.
func (c *console) actions() []string {
	snap := c.session.Snapshot()

	items := make([]string, 0, 7)
	if snap.CanChat() {
		items = append(items, PromptAsk)
	}
	if snap.CanAnalyze() {
		items = append(items, PromptAnalyze)
	}

	return append(items, PromptLoadCV, PromptLoadJob, PromptHistory, PromptClear, PromptExit)
}

func (c *console) greet() {
	fmt.Fprintf(c.out, "%s: %s\n\n", assistantLabel(conversation.RoleAssistant), session.Greeting)
}

func (c *console) loadCV(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.notice(session.Notice{Level: session.LevelError, Text: fmt.Sprintf("Could not open %s.", path)})
		return
	}

	notice, err := c.advisor.UploadCV(ctx, c.session, filepath.Base(path), data)
	if err != nil {
		c.notice(advisor.Describe(err))
		return
	}
	c.notice(notice)

	if preview := utils.TruncateForLog(c.session.Snapshot().CVText, previewLength); preview != "" {
		fmt.Fprintf(c.out, "%s\n\n", preview)
	}
}

func (c *console) loadJob(ctx context.Context, url string) {
	notice, err := c.advisor.LoadJob(ctx, c.session, url)
	if err != nil {
		c.notice(advisor.Describe(err))
		return
	}
	c.notice(notice)
}

func (c *console) ask(ctx context.Context, question string) {
	answer, err := c.advisor.Chat(ctx, c.session, question)
	if err != nil {
		c.notice(advisor.Describe(err))
		return
	}

	fmt.Fprintf(c.out, "%s: %s\n\n", assistantLabel(conversation.RoleAssistant), answer)
}

// analyze streams the fit analysis to the terminal. The heading is printed
// once, when the first fragment arrives.
func (c *console) analyze(ctx context.Context) {
	started := false

	_, err := c.advisor.Analyze(ctx, c.session, func(text string) error {
		if !started {
			started = true
			if _, err := fmt.Fprintf(c.out, "%s\n\n", headingStyle(analysisHeading)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(c.out, text)
		return err
	})

	if started {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out)
	}

	if err != nil {
		c.notice(advisor.Describe(err))
	}
}

func (c *console) history() {
	for _, msg := range c.session.Snapshot().Messages {
		label := assistantLabel(msg.Role)
		if msg.Role == conversation.RoleUser {
			label = userLabel(msg.Role)
		}
		fmt.Fprintf(c.out, "%s: %s\n\n", label, msg.Content)
	}
}

func (c *console) reset() {
	c.notice(c.advisor.Reset(c.session))
}

func (c *console) notice(n session.Notice) {
	style, ok := noticeColors[n.Level]
	if !ok {
		style = color.New(color.Reset)
	}
	fmt.Fprintf(c.out, "%s %s\n\n", style.Sprintf("[%s]", n.Level), n.Text)
}
