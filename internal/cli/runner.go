package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/config"
	"github.com/Makepad-fr/tada-client/internal/logging"
	"github.com/Makepad-fr/tada-client/internal/session"
	"github.com/Makepad-fr/tada-client/internal/store/tokenstore"
	"github.com/Makepad-fr/tada-client/internal/todos"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

// Options tune behavior from root flags.
type Options struct {
	Group      bool   // list grouped by pending/done
	ConfigPath string // overrides $TADA_CONFIG
	APIURL     string // overrides api_url
	Theme      string // overrides theme
	Verbose    bool   // debug logging
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	opt     Options
	log     *log.Logger
	client  *api.Client
	session *session.Manager
	todos   *todos.Pipeline
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0
	case "auth", "ls", "add", "edit", "done", "rm", "tui":
	default:
		ui.Fail("unknown subcommand: " + cmd)
		fmt.Fprintln(ui.Err)
		PrintHelp()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ap, closer, err := setup(opt, cmd == "tui")
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}

	switch cmd {
	case "auth":
		return ap.auth(ctx, a)
	case "ls":
		return ap.list(ctx, a)
	case "add":
		return ap.add(ctx, a)
	case "edit":
		return ap.edit(ctx, a)
	case "done":
		return ap.toggle(ctx, a)
	case "rm":
		return ap.remove(ctx, a)
	default:
		return ap.tui(ctx, a)
	}
}

// setup loads config and builds the client, session and pipeline. When the
// TUI owns the terminal the log goes to a file instead of stderr.
func setup(opt Options, toFile bool) (*app, io.Closer, error) {
	cfg, err := config.Load(opt.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opt.APIURL != "" {
		cfg.APIURL = opt.APIURL
	}
	if opt.Theme != "" {
		cfg.Theme = opt.Theme
	}
	if opt.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	ui.SetTheme(cfg.Theme)
	if os.Getenv("NO_COLOR") != "" {
		ui.SetColor(false)
	}

	var (
		logger *log.Logger
		closer io.Closer
	)
	if toFile && cfg.LogFile != "" {
		logger, closer, err = logging.OpenFile(cfg.LogFile, cfg.LogLevel)
	} else {
		logger, err = logging.New(ui.Err, cfg.LogLevel)
	}
	if err != nil {
		return nil, nil, err
	}
	for _, k := range cfg.Unknown {
		logger.Warn("unknown config key", "key", k, "file", cfg.Path)
	}

	client, err := api.New(cfg.APIURL,
		api.WithTimeout(cfg.Timeout.Duration),
		api.WithLogger(logger),
	)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}
	sess := session.NewManager(client, tokenstore.NewFileStore(cfg.CredentialsFile), session.WithLogger(logger))
	client.UseCredentials(sess)

	return &app{
		cfg:     cfg,
		opt:     opt,
		log:     logger,
		client:  client,
		session: sess,
		todos:   todos.New(client, sess.Authorized, todos.WithPageSize(cfg.PageSize), todos.WithLogger(logger)),
	}, closer, nil
}

func PrintHelp() {
	fmt.Fprint(ui.Out, `tada - todos in your terminal

Usage:
  tada [flags] <subcommand> [args]

Subcommands:
  auth login [-email E]              Sign in (password from $TADA_PASSWORD or a prompt)
  auth register [-name N] [-email E] Create an account and sign in
  auth logout                        Sign out and forget the stored token
  auth status                        Show session state, source and expiry
  auth whoami                        Show the identity in the stored token
  ls [-status S] [-priority P] [-q Q] [-sort K] [-order O] [-group] [-json]
                                     List items
  add [-p P] [-due YYYY-MM-DD] [-desc D] <title...>
                                     Add a new item
  edit [-p P] [-due D | -clear-due] [-desc D] <index> [title...]
                                     Change an item
  done <index>                       Toggle done for item at 1-based index
  rm <index>                         Remove item at 1-based index
  tui                                Open the interactive dashboard

Flags:
  -api URL      API base URL (default from config, then http://localhost:8000/api)
  -config PATH  config file (default ~/.tada/config.toml)
  -theme NAME   classic, neon or mono
  -group        group ls output by pending/done
  -v            debug logging

Examples:
  tada auth login -email me@example.com
  tada add -p high -due 2026-03-05 "Buy milk"
  tada ls -status active -sort dueDate -order asc
  tada done 2
  tada rm 3
`)
}

// fail prints err and maps its kind to an exit code.
func fail(err error) int {
	ui.Fail(apperr.Message(err))
	switch apperr.KindOf(err) {
	case apperr.Validation:
		return 2
	case apperr.Auth:
		ui.Hint("run `tada auth login` to sign in")
	case apperr.NotFound:
		ui.Hint("run `tada ls` to refresh the list")
	}
	return 1
}

func usage(msg string) int {
	ui.Fail(msg)
	return 2
}

// newFlags returns a flag set that reports to ui.Err and does not exit.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(ui.Err)
	return fs
}

// parseFlags parses args and maps -h and bad flags to exit codes.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

// parseIndex reads a 1-based index argument.
func parseIndex(cmd, s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		ui.Fail(cmd + ": not a number: " + s)
		return 0, false
	}
	return n, true
}
