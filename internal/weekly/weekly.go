// Package weekly is the command that shares one piece of art with every
// active user. It asks before sending unless -yes is given, prints one line
// per user and a summary, and archives the report when a bucket is configured.
package weekly

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/flagx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/services"
	"golang.org/x/term"
)

// ErrAborted is returned when the operator declines the run.
var ErrAborted = errors.New("aborted")

// ErrNotInteractive is returned for a full run without -yes on a non-terminal stdin.
var ErrNotInteractive = errors.New("stdin is not a terminal; pass -yes to send")

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// now is a test seam for the report timestamp.
var now = func() time.Time { return time.Now().UTC() }

var (
	valuedFlags = []string{"-only-email", "--only-email", "-limit", "--limit", "-concurrency", "--concurrency"}
	switchFlags = []string{"-dry-run", "--dry-run", "-yes", "--yes"}
)

// Options are the flags of the command.
type Options struct {
	DryRun      bool
	OnlyEmail   string
	Limit       int
	Concurrency int
	Yes         bool
}

// ParseOptions reads the command's own flags from args; anything else, such
// as server configuration flags, is ignored.
//
//	-dry-run           select pieces without recording or emailing
//	-only-email string process one user (case-insensitive)
//	-limit int         process at most this many users
//	-concurrency int   users processed in parallel (1)
//	-yes               skip the confirmation prompt
func ParseOptions(args []string) (Options, error) {
	var o Options

	fs := flag.NewFlagSet("weekly", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&o.DryRun, "dry-run", false, "select without sending")
	fs.StringVar(&o.OnlyEmail, "only-email", "", "process one user")
	fs.IntVar(&o.Limit, "limit", 0, "maximum users")
	fs.IntVar(&o.Concurrency, "concurrency", 1, "users in parallel")
	fs.BoolVar(&o.Yes, "yes", false, "do not ask for confirmation")

	if err := fs.Parse(flagx.Filter(args, valuedFlags, switchFlags)); err != nil {
		return Options{}, err
	}
	if o.Limit < 0 {
		return Options{}, fmt.Errorf("limit must not be negative, got %d", o.Limit)
	}
	if o.Concurrency < 1 {
		return Options{}, fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	o.OnlyEmail = strings.TrimSpace(o.OnlyEmail)
	return o, nil
}

// Runner is satisfied by *services.DistributionService.
type Runner interface {
	RunWeekly(ctx context.Context, opts services.BatchOptions) (*services.BatchReport, error)
}

// Archiver is satisfied by *reports.Archiver.
type Archiver interface {
	Enabled() bool
	Archive(ctx context.Context, report *services.BatchReport, at time.Time) (string, string, error)
}

// Command runs one weekly batch.
type Command struct {
	Runner   Runner
	Archiver Archiver
	In       io.Reader
	InFd     int
	Out      io.Writer
	Logger   logging.Logger
}

// confirm asks the operator before a real run over the whole population.
// Dry runs and runs narrowed by -only-email or -limit go ahead.
func (c *Command) confirm(o Options) error {
	if o.DryRun || o.Yes || o.OnlyEmail != "" || o.Limit > 0 {
		return nil
	}
	if !isTerminal(c.InFd) {
		return ErrNotInteractive
	}

	answer, err := getSimpleText(bufio.NewReader(c.In), "Send this week's art to every active user? [y/N]", c.Out)
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	default:
		return ErrAborted
	}
}

// getSimpleText prints a prompt to w and reads one trimmed line from reader.
// A partial last line before EOF counts.
func getSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Run executes the batch. Per-user failures are printed and returned joined
// after the report has been written and archived.
func (c *Command) Run(ctx context.Context, o Options) error {
	if err := c.confirm(o); err != nil {
		return err
	}

	started := now()
	report, err := c.Runner.RunWeekly(ctx, services.BatchOptions{
		DryRun:      o.DryRun,
		OnlyEmail:   o.OnlyEmail,
		Limit:       o.Limit,
		Concurrency: o.Concurrency,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.Out, report.String())

	if c.Archiver != nil && c.Archiver.Enabled() {
		key, url, err := c.Archiver.Archive(ctx, report, started)
		if err != nil {
			c.Logger.Error(ctx, "archiving report", "key", key, "error", err)
		} else {
			fmt.Fprintf(c.Out, "Report: %s\n%s\n", key, url)
		}
	}

	return report.Err()
}
