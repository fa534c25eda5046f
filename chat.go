package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"mcpchat/model"
	"mcpchat/ui"
)

var (
	renderMarkdown bool
	copyAnswer     bool
	chatWidth      int
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one message and stream the answer",
	Long: `Send one message through the tool-calling loop and print the answer as it
streams. Tool calls and detected charts are shown inline.

With no arguments the message is read from stdin.

Examples:
  mcpchat chat "What's the weather in Paris?"
  echo "summarize my steps" | mcpchat chat --render`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&renderMarkdown, "render", false, "Render the answer as markdown once it is complete")
	chatCmd.Flags().BoolVar(&copyAnswer, "copy", false, "Copy the final answer to the clipboard")
	chatCmd.Flags().IntVar(&chatWidth, "width", 100, "Terminal width used for wrapping")
}

func runChat(cmd *cobra.Command, args []string) error {
	message, err := readMessage(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, p, err := a.orchestrator()
	if err != nil {
		return err
	}
	if err := a.startServers(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.FormatPairs("provider", p.Name(), "tools", fmt.Sprint(len(a.mcp.ListTools()))))
	fmt.Fprintf(out, "%s %s\n", ui.UserStyle.Render("You:"), message)

	history := []model.Message{model.NewMessage(model.RoleUser, message)}
	printer := ui.NewPrinter(out, chatWidth, renderMarkdown)
	final, err := printer.Stream(orch.Run(ctx, history, a.mcp.ListTools()))
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return errors.New("interrupted")
	}

	if copyAnswer {
		answer := finalAnswer(final)
		if answer == "" {
			printWarning("no answer to copy")
			return nil
		}
		if err := clipboard.WriteAll(answer); err != nil {
			printWarning(fmt.Sprintf("failed to copy answer: %v", err))
		}
	}
	return nil
}

// finalAnswer returns the content of the last assistant message.
func finalAnswer(history []model.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant && history[i].Content != "" {
			return history[i].Content
		}
	}
	return ""
}

func readMessage(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no message given (pass it as an argument or on stdin)")
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	message := strings.TrimSpace(string(data))
	if message == "" {
		return "", errors.New("message is empty")
	}
	return message, nil
}
