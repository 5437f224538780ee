// Package cmd implements the devtools command.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/devtools/cmd/state"
	"github.com/liuxd6825/devtools/errext"
	"github.com/liuxd6825/devtools/errext/exitcodes"
	"github.com/liuxd6825/devtools/internal/lib/trace"
	"github.com/liuxd6825/devtools/lib/consts"
	"github.com/liuxd6825/devtools/log"
)

const (
	waitLoggerCloseTimeout = time.Second * 5
	tracerShutdownTimeout  = time.Second * 5
)

// Execute runs the devtools command with the state of the current process.
// It is called by main.main().
func Execute() {
	gs := state.NewGlobalState(context.Background())
	ExecuteWithGlobalState(gs)
}

// ExecuteWithGlobalState runs the root command with an existing GlobalState.
// It adds all child commands to the root command and it sets flags appropriately.
func ExecuteWithGlobalState(gs *state.GlobalState) {
	newRootCommand(gs).execute()
}

// This is to keep all fields needed for the main/root devtools command
type rootCommand struct {
	globalState *state.GlobalState

	cmd            *cobra.Command
	stopLoggersCh  chan struct{}
	loggersWg      sync.WaitGroup
	tracerProvider *trace.TracerProvider
}

func newRootCommand(gs *state.GlobalState) *rootCommand {
	c := &rootCommand{
		globalState:   gs,
		stopLoggersCh: make(chan struct{}),
	}
	// the base command when called without any subcommands.
	rootCmd := &cobra.Command{
		Use:   gs.BinaryName,
		Short: "Inspect and control browsers through their remote debugging endpoint",
		Long: "\nLists, opens, activates and closes the targets of a browser started with\n" +
			"--remote-debugging-port, and resolves the protocol schema matching its revision.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
		Version:           consts.FullVersion(),
	}

	rootCmd.SetVersionTemplate(
		`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "v%s\n" .Version}}`,
	)

	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.PersistentFlags().AddFlagSet(configFlagSet())
	rootCmd.PersistentFlags().AddFlagSet(outputFlagSet())
	rootCmd.SetArgs(gs.CmdArgs[1:])
	rootCmd.SetOut(gs.Stdout)
	rootCmd.SetErr(gs.Stderr)
	rootCmd.SetIn(gs.Stdin)

	subCommands := []func(*state.GlobalState, *rootCommand) *cobra.Command{
		getCmdList, getCmdNew, getCmdActivate, getCmdClose, getCmdVersion,
		getCmdProtocol, getCmdCDP, getCmdBuildInfo,
	}

	defaultUsageTemplate := (&cobra.Command{}).UsageTemplate()
	defaultUsageTemplate = strings.ReplaceAll(defaultUsageTemplate, "FlagUsages", "FlagUsagesWrapped 120")

	for _, sc := range subCommands {
		cmd := sc(gs, c)
		cmd.SetUsageTemplate(defaultUsageTemplate)
		rootCmd.AddCommand(cmd)
	}

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if err := c.setupLoggers(c.stopLoggersCh); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	c.globalState.Logger.Debugf("devtools version: v%s", consts.FullVersion())

	tp, err := trace.TracerProviderFromConfigLine(c.globalState.Ctx, c.globalState.Flags.TracesOutput)
	if err != nil {
		return errext.WithExitCodeIfNone(
			fmt.Errorf("invalid --traces-output: %w", err), exitcodes.InvalidConfig)
	}
	c.tracerProvider = tp

	return nil
}

func (c *rootCommand) execute() {
	ctx, cancel := context.WithCancel(c.globalState.Ctx)
	c.globalState.Ctx = ctx

	exitCode := -1
	defer func() {
		cancel()
		c.shutdownTracer()
		c.stopLoggers()
		c.globalState.OSExit(exitCode)
	}()

	defer func() {
		if r := recover(); r != nil {
			exitCode = int(exitcodes.GoPanic)
			err := fmt.Errorf("unexpected devtools panic: %s\n%s", r, debug.Stack())
			c.globalState.Logger.Error(err)
		}
	}()

	err := c.cmd.Execute()
	if err == nil {
		exitCode = 0
		return
	}

	var ecerr errext.HasExitCode
	if errors.As(err, &ecerr) {
		exitCode = int(ecerr.ExitCode())
	}

	errText, fields := errext.Format(err)
	c.globalState.Logger.WithFields(fields).Error(errText)
}

// tracer returns the tracer provider set up by persistentPreRunE, or a noop
// one for commands that run without it.
func (c *rootCommand) tracer() *trace.TracerProvider {
	if c.tracerProvider == nil {
		c.tracerProvider = trace.NewNoopTracerProvider()
	}
	return c.tracerProvider
}

func (c *rootCommand) shutdownTracer() {
	if c.tracerProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
	defer cancel()
	if err := c.tracerProvider.Shutdown(ctx); err != nil {
		c.globalState.FallbackLogger.Errorf("Couldn't flush the traces: %s", err)
	}
}

func (c *rootCommand) stopLoggers() {
	done := make(chan struct{})
	go func() {
		c.loggersWg.Wait()
		close(done)
	}()
	close(c.stopLoggersCh)
	select {
	case <-done:
	case <-time.After(waitLoggerCloseTimeout):
		c.globalState.FallbackLogger.Errorf("The logger didn't stop in %s", waitLoggerCloseTimeout)
	}
}

func rootCmdPersistentFlagSet(gs *state.GlobalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	// We need to use `gs.Flags.<value>` both as the destination and as
	// the value here, since the config values could have already been set by
	// their respective environment variables. However, we then also have to
	// explicitly set the DefValue to the respective default value from
	// `gs.DefaultFlags.<value>`, so that the `devtools --help` message is
	// not messed up...

	flags.StringVar(&gs.Flags.LogOutput, "log-output", gs.Flags.LogOutput,
		"change the output for devtools logs, possible values are: "+
			"'stderr', 'stdout', 'none', 'file[=./path.fileformat]'")
	flags.Lookup("log-output").DefValue = gs.DefaultFlags.LogOutput

	flags.StringVar(&gs.Flags.LogFormat, "log-format", gs.Flags.LogFormat, "log output format: text, json or raw")
	flags.Lookup("log-format").DefValue = gs.DefaultFlags.LogFormat

	flags.StringVar(&gs.Flags.TracesOutput, "traces-output", gs.Flags.TracesOutput,
		"set the output for devtools traces, possible values are none,otel[=host:port]")
	flags.Lookup("traces-output").DefValue = gs.DefaultFlags.TracesOutput

	flags.StringVarP(&gs.Flags.ConfigFilePath, "config", "c", gs.Flags.ConfigFilePath, "JSON config file")
	// And we also need to explicitly set the default value for the usage message here, so things
	// like `DEVTOOLS_CONFIG="blah" devtools list -h` don't produce a weird usage message
	flags.Lookup("config").DefValue = gs.DefaultFlags.ConfigFilePath
	must(cobra.MarkFlagFilename(flags, "config"))

	flags.BoolVar(&gs.Flags.NoColor, "no-color", gs.Flags.NoColor, "disable colored output")
	flags.Lookup("no-color").DefValue = strconv.FormatBool(gs.DefaultFlags.NoColor)

	flags.BoolVarP(&gs.Flags.Verbose, "verbose", "v", gs.Flags.Verbose, "enable verbose logging")
	flags.Lookup("verbose").DefValue = strconv.FormatBool(gs.DefaultFlags.Verbose)

	return flags
}

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// setupLoggers configures the output and format of the logger. Hooks that
// buffer, like the file one, are closed once stop is closed.
func (c *rootCommand) setupLoggers(stop <-chan struct{}) error {
	if c.globalState.Flags.Verbose {
		c.globalState.Logger.SetLevel(logrus.DebugLevel)
	}

	var hook *log.FileHook
	loggerForceColors := false // disable color by default
	switch line := c.globalState.Flags.LogOutput; {
	case line == "stderr":
		loggerForceColors = !c.globalState.Flags.NoColor && c.globalState.Stderr.IsTTY
		c.globalState.Logger.SetOutput(c.globalState.Stderr)
	case line == "stdout":
		loggerForceColors = !c.globalState.Flags.NoColor && c.globalState.Stdout.IsTTY
		c.globalState.Logger.SetOutput(c.globalState.Stdout)
	case line == "none":
		c.globalState.Logger.SetOutput(io.Discard)
	case strings.HasPrefix(line, "file"):
		var err error
		hook, err = log.FileHookFromConfigLine(c.globalState.FS, line)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported log output '%s'", line)
	}

	switch c.globalState.Flags.LogFormat {
	case "raw":
		c.globalState.Logger.SetFormatter(&RawFormatter{})
		c.globalState.Logger.Debug("Logger format: RAW")
	case "json":
		c.globalState.Logger.SetFormatter(&logrus.JSONFormatter{})
		c.globalState.Logger.Debug("Logger format: JSON")
	default:
		c.globalState.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors: loggerForceColors, DisableColors: c.globalState.Flags.NoColor,
		})
		c.globalState.Logger.Debug("Logger format: TEXT")
	}

	if hook != nil {
		c.globalState.Logger.AddHook(hook)
		c.globalState.Logger.SetOutput(io.Discard) // don't output to anywhere else
	}

	// Sometimes the Go runtime uses the standard log output to
	// log some messages directly.
	w := c.globalState.Logger.Writer()
	stdlog.SetOutput(w)
	c.loggersWg.Add(1)
	go func() {
		<-stop
		_ = w.Close()
		if hook != nil {
			if err := hook.Close(); err != nil {
				c.globalState.FallbackLogger.Errorf("Couldn't close the log file: %s", err)
			}
		}
		c.loggersWg.Done()
	}()
	return nil
}
