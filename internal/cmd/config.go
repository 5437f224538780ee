package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"

	"github.com/spf13/pflag"

	"github.com/liuxd6825/devtools/cmd/state"
	"github.com/liuxd6825/devtools/devtools"
	"github.com/liuxd6825/devtools/errext"
	"github.com/liuxd6825/devtools/errext/exitcodes"
	"github.com/liuxd6825/devtools/lib/fsext"
	"github.com/liuxd6825/devtools/log"
)

func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.String("host", devtools.DefaultHost, "host of the browser's remote debugging endpoint")
	flags.Int64P("port", "p", devtools.DefaultPort, "port of the browser's remote debugging endpoint")
	flags.Duration("timeout", devtools.DefaultTimeout, "timeout of the whole command, 0 to disable it")
	return flags
}

// getConfig returns the config values explicitly set with CLI flags.
func getConfig(flags *pflag.FlagSet) devtools.Config {
	return devtools.Config{
		Host:    getNullString(flags, "host"),
		Port:    getNullInt64(flags, "port"),
		Timeout: getNullDuration(flags, "timeout"),
	}
}

// readDiskConfig returns the contents of the JSON config file, or nothing if
// it is the default one and it doesn't exist.
func readDiskConfig(gs *state.GlobalState) (json.RawMessage, error) {
	// Try to see if the file exists in the supplied filesystem
	if _, err := gs.FS.Stat(gs.Flags.ConfigFilePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) && gs.Flags.ConfigFilePath == gs.DefaultFlags.ConfigFilePath {
			// If the file doesn't exist, but it was the default config file (i.e. the user
			// didn't specify anything), silence the error
			err = nil
		}
		return nil, err
	}

	data, err := fsext.ReadFile(gs.FS, gs.Flags.ConfigFilePath)
	if err != nil {
		return nil, fmt.Errorf("couldn't load the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}
	return data, nil
}

// loadConfig consolidates the defaults, the config file, the environment and
// the CLI flags, in this order of precedence from lowest to highest.
func loadConfig(gs *state.GlobalState, flags *pflag.FlagSet) (devtools.Config, error) {
	diskConf, err := readDiskConfig(gs)
	if err != nil {
		return devtools.Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	conf, err := devtools.GetConsolidatedConfig(diskConf, gs.Env, getConfig(flags))
	if err != nil {
		return conf, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if err := conf.Validate(); err != nil {
		return conf, errext.WithExitCodeIfNone(fmt.Errorf("invalid config: %w", err), exitcodes.InvalidConfig)
	}
	return conf, nil
}

// browserSession is the state every command talking to the browser needs: a
// client and a context bounded by the configured timeout.
type browserSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	conf   devtools.Config
	client *devtools.Client
	logger *log.Logger
}

func (c *rootCommand) newBrowserSession(flags *pflag.FlagSet) (*browserSession, error) {
	gs := c.globalState
	conf, err := loadConfig(gs, flags)
	if err != nil {
		return nil, err
	}

	logger := log.New(gs.Logger, nil)
	client, err := devtools.New(conf,
		devtools.WithLogger(logger),
		devtools.WithTracerProvider(c.tracer()),
	)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	ctx, interrupt := context.WithCancelCause(gs.Ctx)
	stopSignals := handleAbortSignals(gs, func(sig os.Signal) {
		gs.Logger.Debugf("Stopping devtools in response to signal %s...", sig)
		interrupt(&errext.InterruptError{Reason: fmt.Sprintf("interrupted by signal %s", sig)})
	})
	cancelTimeout := context.CancelFunc(func() {})
	if d := conf.Timeout.TimeDuration(); d > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, d)
	}
	cancel := func() {
		cancelTimeout()
		stopSignals()
		interrupt(nil)
	}
	gs.Logger.Debugf("Using the browser at %s", conf.BaseURL())

	return &browserSession{ctx: ctx, cancel: cancel, conf: conf, client: client, logger: logger}, nil
}

// interruption returns the error a signal canceled the session with, if any.
func (s *browserSession) interruption() error {
	if cause := context.Cause(s.ctx); errext.IsInterruptError(cause) {
		return cause
	}
	return nil
}

// browserError attaches an exit code, and a hint when the browser can't be
// reached at all, to an error returned by a target operation.
func (s *browserSession) browserError(err error) error {
	if cause := s.interruption(); cause != nil {
		return cause
	}
	var statusErr *devtools.StatusError
	switch {
	case errors.As(err, &statusErr):
		return errext.WithExitCodeIfNone(
			fmt.Errorf("the browser answered with status %d: %w", statusErr.StatusCode, err),
			exitcodes.BrowserRequestFailed)
	case errors.Is(err, context.DeadlineExceeded):
		return errext.WithExitCodeIfNone(
			errext.WithHint(err, "increase --timeout if the browser is slow to answer"),
			exitcodes.BrowserRequestFailed)
	case errors.Is(err, devtools.ErrResponseTooLarge):
		return errext.WithExitCodeIfNone(
			errext.WithHint(err, "raise maxResponseSize in the config file or with DEVTOOLS_MAX_RESPONSE_SIZE"),
			exitcodes.BrowserRequestFailed)
	case isConnError(err):
		return errext.WithExitCodeIfNone(
			errext.WithHint(err, fmt.Sprintf(
				"is the browser running with --remote-debugging-port=%d on %s?",
				s.conf.Port.Int64, s.conf.Host.String)),
			exitcodes.BrowserUnreachable)
	default:
		return errext.WithExitCodeIfNone(err, exitcodes.BrowserRequestFailed)
	}
}

// isConnError reports whether err comes from the transport rather than from
// an answer of the browser.
func isConnError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
