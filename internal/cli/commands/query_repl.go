package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/queryrunner/pkg/core"
	"github.com/leapstack-labs/queryrunner/pkg/runner"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "drill> "
	replContinuePrompt = "  ...> "
	historyFileName    = ".queryrunner_history"

	// completionTimeout bounds the schema lookup used for tab completion.
	completionTimeout = 5 * time.Second
)

// replSession executes lines typed at the REPL against one data source.
type replSession struct {
	cmd    *cobra.Command
	cc     *CommandContext
	source string
	qr     runner.QueryRunner
	opts   *QueryOptions
	buf    strings.Builder
}

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, source string, qr runner.QueryRunner, opts *QueryOptions) error {
	ctx := cmd.Context()
	s := &replSession{cmd: cmd, cc: cc, source: source, qr: qr, opts: opts}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyPath(),
		AutoComplete:    s.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queryrunner REPL (data source: %s, runner: %s)\n", source, qr.Name())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		prompt, quit := s.handleLine(ctx, line)
		if quit {
			return nil
		}
		rl.SetPrompt(prompt)
	}
}

// handleLine processes one input line and returns the next prompt.
// SQL accumulates across lines until a terminating semicolon. Once ctx is
// cancelled the session quits.
func (s *replSession) handleLine(ctx context.Context, line string) (prompt string, quit bool) {
	if ctx.Err() != nil {
		return replPrompt, true
	}
	line = strings.TrimSpace(line)
	if line == "" {
		if s.buf.Len() > 0 {
			return replContinuePrompt, false
		}
		return replPrompt, false
	}

	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return replPrompt, s.handleDotCommand(ctx, line)
	}

	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString("\n")
		return replContinuePrompt, false
	}

	query := strings.TrimSuffix(s.buf.String(), ";")
	s.buf.Reset()

	if err := s.execute(ctx, query); err != nil {
		_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(s.cmd.OutOrStdout())
	return replPrompt, ctx.Err() != nil
}

func (s *replSession) execute(ctx context.Context, query string) error {
	var user *core.User
	if s.opts.User != "" {
		user = &core.User{Name: s.opts.User}
	}
	if s.qr.AnnotateQuery() {
		query = runner.NewAnnotation(user, s.opts.QueryID).Apply(query)
	}

	data, err := s.qr.RunQuery(ctx, query, user)
	if err != nil {
		return err
	}
	result, err := runner.DecodeResult(data)
	if err != nil {
		return err
	}
	return renderResult(s.cc.NewRenderer(s.cmd, s.opts.Format), result)
}

// handleDotCommand runs a REPL meta command and reports whether to quit.
func (s *replSession) handleDotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	out, errOut := s.cmd.OutOrStdout(), s.cmd.ErrOrStderr()

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".tables":
		tables, err := s.qr.GetSchema(ctx, false)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		for _, t := range tables {
			_, _ = fmt.Fprintln(out, t.Name)
		}

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <schema.table>")
			return false
		}
		tables, err := s.qr.GetSchema(ctx, false)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		for _, t := range tables {
			if t.Name == parts[1] {
				for _, c := range t.Columns {
					_, _ = fmt.Fprintln(out, c)
				}
				return false
			}
		}
		_, _ = fmt.Fprintf(errOut, "Error: table %q not found\n", parts[1])

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                   Show this help message
  .tables                 List tables visible to the data source
  .schema <schema.table>  Show the columns of a table
  .quit / .exit           Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// completer offers table names and dot-commands. Tables are looked up once;
// a failed lookup leaves only the dot-commands.
func (s *replSession) completer(ctx context.Context) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	lookupCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()
	if tables, err := s.qr.GetSchema(lookupCtx, false); err == nil {
		schemaItems := make([]readline.PrefixCompleterInterface, 0, len(tables))
		for _, t := range tables {
			items = append(items, readline.PcItem(t.Name))
			schemaItems = append(schemaItems, readline.PcItem(t.Name))
		}
		items = append(items, readline.PcItem(".schema", schemaItems...))
	} else {
		items = append(items, readline.PcItem(".schema"))
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

// historyPath returns the REPL history file, or "" to disable history.
func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFileName)
}
