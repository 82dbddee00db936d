// Package repl provides the interactive chat shell used after a retrieval.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/IshaanNene/driverscout/internal/ai"
	"github.com/IshaanNene/driverscout/internal/report"
	"github.com/IshaanNene/driverscout/internal/retrieval"
)

// Retriever runs one retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, serviceTag string) (*retrieval.Result, error)
}

// REPL is an interactive shell for asking questions about a driver report.
type REPL struct {
	asker     ai.Asker
	retriever Retriever
	session   *ai.ChatSession
	model     string
	logger    *slog.Logger
	reader    *bufio.Reader
	out       io.Writer
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.reader = bufio.NewReader(in)
		r.out = out
	}
}

// WithRetriever enables the fetch command.
func WithRetriever(rt Retriever) Option {
	return func(r *REPL) { r.retriever = rt }
}

// WithSession starts the shell on an existing session.
func WithSession(s *ai.ChatSession) Option {
	return func(r *REPL) { r.session = s }
}

// WithModel sets the model name shown in the banner.
func WithModel(model string) Option {
	return func(r *REPL) { r.model = model }
}

// New creates a new REPL instance.
func New(asker ai.Asker, logger *slog.Logger, opts ...Option) *REPL {
	r := &REPL{
		asker:  asker,
		logger: logger.With("component", "repl"),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session returns the current chat session, or nil before a report is loaded.
func (r *REPL) Session() *ai.ChatSession { return r.session }

// Run reads lines until exit, EOF or ctx cancellation. Lines that are not
// commands are sent to the model as questions about the current report.
func (r *REPL) Run(ctx context.Context) error {
	r.printf("DriverScout chat")
	if r.model != "" {
		r.printf(" (model: %s)", r.model)
	}
	r.printf("\n   Ask about the drivers in the report. Type 'help' for commands, 'exit' to quit.\n\n")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.printf("you> ")
		line, err := r.reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				r.printf("\n")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			r.printHelp()
		case "exit", "quit", "q":
			r.printf("Goodbye!\n")
			return nil
		case "fetch":
			r.cmdFetch(ctx, args)
		case "load":
			r.cmdLoad(args)
		case "history":
			r.cmdHistory()
		case "reset":
			r.cmdReset()
		case "report":
			r.cmdReport()
		case "clear":
			r.printf("\033[H\033[2J")
		default:
			r.ask(ctx, line)
		}
	}
}

func (r *REPL) printHelp() {
	r.printf(`
Available Commands:
  fetch <service-tag>   Retrieve drivers for a service tag and chat about them
  load <report.md>      Chat about an existing Markdown report
  report                Show the report in use
  history               Show the conversation so far
  reset                 Clear the conversation history

  clear                 Clear the screen
  help                  Show this help
  exit                  Exit the shell

Anything else is sent to the model as a question.
`)
}

func (r *REPL) ask(ctx context.Context, question string) {
	if r.session == nil {
		r.printf("No report loaded. Use 'fetch <service-tag>' or 'load <report.md>' first.\n")
		return
	}
	reply := r.session.Ask(ctx, r.asker, question)
	r.printf("ai> %s\n\n", reply)
}

func (r *REPL) cmdFetch(ctx context.Context, args []string) {
	if r.retriever == nil {
		r.printf("Retrieval is not available in this shell.\n")
		return
	}
	if len(args) == 0 {
		r.printf("Usage: fetch <service-tag>\n")
		return
	}

	tag := strings.Join(args, " ")
	r.printf("Retrieving drivers for %s...\n", tag)
	res, err := r.retriever.Retrieve(ctx, tag)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}

	if res.Degraded {
		r.printf("Warning: no drivers found, the report only links to the support site.\n")
	} else {
		r.printf("Found %d drivers via %s.\n", len(res.Document.Drivers), res.Strategy)
	}
	r.printf("Saved %s and %s\n", res.JSONPath, res.MarkdownPath)

	r.bind(res.MarkdownPath, report.RenderMarkdown(res.Document))
}

func (r *REPL) cmdLoad(args []string) {
	if len(args) != 1 {
		r.printf("Usage: load <report.md>\n")
		return
	}
	sess, err := ai.NewChatSession(args[0])
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	r.bind(sess.ReportPath, sess.Report)
}

// bind resets the current session to a new report, creating it if needed.
func (r *REPL) bind(path, reportText string) {
	if r.session == nil {
		r.session = &ai.ChatSession{}
	}
	r.session.Reset(path, reportText)
	r.logger.Debug("chat session bound", "report", path)
	r.printf("Chatting about %s\n", path)
}

func (r *REPL) cmdHistory() {
	if r.session == nil {
		r.printf("No report loaded.\n")
		return
	}
	history := r.session.History()
	if len(history) == 0 {
		r.printf("No messages yet.\n")
		return
	}
	for _, m := range history {
		r.printf("%-9s %s\n", m.Role+":", m.Content)
	}
}

func (r *REPL) cmdReset() {
	if r.session == nil {
		r.printf("No report loaded.\n")
		return
	}
	r.session.Reset(r.session.ReportPath, r.session.Report)
	r.printf("History cleared.\n")
}

func (r *REPL) cmdReport() {
	if r.session == nil {
		r.printf("No report loaded.\n")
		return
	}
	r.printf("Report: %s (%d messages)\n", r.session.ReportPath, len(r.session.History()))
}

func (r *REPL) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
