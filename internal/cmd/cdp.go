package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/devtools/cdp"
	"github.com/liuxd6825/devtools/cmd/state"
	"github.com/liuxd6825/devtools/errext"
	"github.com/liuxd6825/devtools/errext/exitcodes"
)

type cmdCDP struct {
	gs   *state.GlobalState
	root *rootCommand

	targetID string
}

func (c *cmdCDP) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVarP(&c.targetID, "target", "t", "",
		"id of the target to send the method to, the browser itself when empty")
	return flags
}

// webSocketURL finds the debugger endpoint of the chosen target, or the one
// of the browser.
func (c *cmdCDP) webSocketURL(s *browserSession) (string, error) {
	if c.targetID == "" {
		info, err := s.client.Version(s.ctx)
		if err != nil {
			return "", s.browserError(err)
		}
		if info.WebSocketDebuggerURL() == "" {
			return "", errext.WithExitCodeIfNone(
				errors.New("the browser doesn't expose a browser-level webSocketDebuggerUrl"),
				exitcodes.CDPFailed)
		}
		return info.WebSocketDebuggerURL(), nil
	}

	targets, err := s.client.List(s.ctx)
	if err != nil {
		return "", s.browserError(err)
	}
	for _, t := range targets {
		if t.ID != c.targetID {
			continue
		}
		if t.WebSocketDebuggerURL == "" {
			return "", errext.WithExitCodeIfNone(errext.WithHint(
				fmt.Errorf("target %s has no webSocketDebuggerUrl", t.ID),
				"another client may already be attached to it"),
				exitcodes.CDPFailed)
		}
		return t.WebSocketDebuggerURL, nil
	}
	return "", errext.WithExitCodeIfNone(errext.WithHint(
		fmt.Errorf("no target with id %q", c.targetID),
		"run the list command to see the ids of the targets"),
		exitcodes.CDPFailed)
}

func (c *cmdCDP) run(cmd *cobra.Command, args []string) error {
	method := args[0]
	var params json.RawMessage
	if len(args) > 1 {
		params = json.RawMessage(args[1])
		if !json.Valid(params) {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("params of %s are not valid JSON", method), exitcodes.InvalidConfig)
		}
	}

	s, err := c.root.newBrowserSession(cmd.Flags())
	if err != nil {
		return err
	}
	defer s.cancel()

	wsURL, err := c.webSocketURL(s)
	if err != nil {
		return err
	}

	conn, err := cdp.Dial(s.ctx, wsURL, s.logger)
	if err != nil {
		if cause := s.interruption(); cause != nil {
			return cause
		}
		return errext.WithExitCodeIfNone(err, exitcodes.CDPFailed)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			c.gs.Logger.WithError(cerr).Debug("Closing the CDP connection failed")
		}
	}()

	res, err := conn.Call(s.ctx, method, params)
	if err != nil {
		if cause := s.interruption(); cause != nil {
			return cause
		}
		return errext.WithExitCodeIfNone(fmt.Errorf("calling %s: %w", method, err), exitcodes.CDPFailed)
	}
	return printResult(c.gs, cmd.Flags(), res)
}

func getCmdCDP(gs *state.GlobalState, root *rootCommand) *cobra.Command {
	c := &cmdCDP{gs: gs, root: root}

	cdpCmd := &cobra.Command{
		Use:   "cdp <method> [params]",
		Short: "Send a protocol method over the debugger websocket",
		Long: "Send a single protocol method, with optional JSON params, to the browser\n" +
			"or to one of its targets, and print its result.",
		Example: getExampleText(gs, `
  # Ask the browser for its version
  {{.}} cdp Browser.getVersion

  # Navigate a target
  {{.}} cdp --target 8C1F Page.navigate '{"url":"https://example.com"}'`[1:]),
		Args: cobra.RangeArgs(1, 2),
		RunE: c.run,
	}
	cdpCmd.Flags().AddFlagSet(c.flagSet())
	return cdpCmd
}
