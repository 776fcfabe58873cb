// Package cli parses the command line with cobra and dispatches to the
// registered commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"tasklist/internal/commands"
	"tasklist/internal/config"
	"tasklist/internal/exitcode"
)

// EnvFactory builds the command environment from config.
// Used to inject the backend during dispatch.
type EnvFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*commands.Env, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  EnvFactory
	stdin    io.Reader
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStdin sets where passwords are read from. Defaults to os.Stdin.
func WithStdin(r io.Reader) Option {
	return func(d *Dispatcher) { d.stdin = r }
}

// NewDispatcher creates a new dispatcher with the given registry and env factory.
func NewDispatcher(registry *commands.Registry, factory EnvFactory, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		factory:  factory,
		stdin:    os.Stdin,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// globalFlags are accepted by every command.
type globalFlags struct {
	configDir string
	apiURL    string
	quiet     bool
	debug     bool
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list"
	if len(args) == 0 {
		args = []string{"list"}
	}

	// Flags require a command.
	first := args[0]
	if _, ok := d.registry.Find(first); !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", first)
		return exitcode.UserError
	}

	code := exitcode.Success
	var flags globalFlags
	root := d.newRoot(&flags, out, errOut, func(c *cobra.Command, cmd commands.Command, positional []string) {
		code = d.dispatchCommand(c.Context(), cmd, flags, positional, out, errOut)
	})
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	return code
}

func (d *Dispatcher) newRoot(flags *globalFlags, out, errOut io.Writer, run func(*cobra.Command, commands.Command, []string)) *cobra.Command {
	root := &cobra.Command{
		Use:           "tasklist",
		Short:         "Task list client",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetHelpFunc(func(*cobra.Command, []string) {
		fmt.Fprint(out, commands.HelpText(d.registry))
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config", "", "override config directory")
	pf.StringVar(&flags.apiURL, "api-url", "", "override the API base URL")
	pf.BoolVar(&flags.quiet, "quiet", false, "suppress informational output")
	pf.BoolVar(&flags.debug, "debug", false, "print debug logs to stderr")

	for _, cmd := range d.registry.All() {
		cmd := cmd
		cc := &cobra.Command{
			Use:                   cmd.Name(),
			Aliases:               cmd.Aliases(),
			Short:                 cmd.Synopsis(),
			DisableFlagsInUseLine: true,
			Run: func(c *cobra.Command, args []string) {
				run(c, cmd, args)
			},
		}
		cmd.RegisterFlags(cc.Flags())

		if cmd.Name() == "help" {
			root.SetHelpCommand(cc)
			continue
		}
		root.AddCommand(cc)
	}
	return root
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, flags globalFlags, args []string, out, errOut io.Writer) int {
	cfg, err := config.New(flags.configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	if flags.apiURL != "" {
		cfg.API.URL = strings.TrimRight(flags.apiURL, "/")
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.UserError
		}
	}
	cfg.Quiet = flags.quiet
	cfg.Debug = flags.debug

	logger := NewLogger(errOut, cfg.Debug)
	if used := cfg.FileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}

	if !commands.NeedsEnv(cmd) {
		return cmd.Run(ctx, cfg, nil, args, out, errOut)
	}

	reg := prometheus.NewRegistry()
	env, err := d.factory(ctx, cfg, logger, reg)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.BackendError
	}
	defer env.Close()
	if env.Stdin == nil {
		env.Stdin = d.stdin
	}
	if env.Logger == nil {
		env.Logger = logger
	}
	if cfg.Debug {
		defer logMetrics(logger, reg)
	}

	// Check auth requirements
	if cmd.NeedsAuth() {
		if cfg.Auth.VerifyOnStart && env.Auth.IsAuthenticated(ctx) {
			if _, err := env.Auth.Verify(ctx); err != nil {
				logger.Warn("session verification failed", "error", err)
			}
		}
		if !env.Auth.IsAuthenticated(ctx) {
			fmt.Fprintf(errOut, "error: not logged in %s\n", commands.LoginHint)
			return exitcode.AuthError
		}
	}

	return cmd.Run(ctx, cfg, env, args, out, errOut)
}
