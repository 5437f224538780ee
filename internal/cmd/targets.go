package cmd

import (
	"github.com/spf13/cobra"

	"github.com/liuxd6825/devtools/cmd/state"
)

func getCmdList(gs *state.GlobalState, root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the targets of the browser",
		Long:  "List the pages, workers and other targets the browser exposes for debugging.",
		Example: getExampleText(gs, `
  # List the targets of the browser listening on localhost:9222
  {{.}} list

  # Only print their ids
  {{.}} list --query '#.id'`[1:]),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.newBrowserSession(cmd.Flags())
			if err != nil {
				return err
			}
			defer s.cancel()

			targets, err := s.client.List(s.ctx)
			if err != nil {
				return s.browserError(err)
			}
			gs.Logger.Debugf("The browser exposes %d targets", len(targets))
			return printResult(gs, cmd.Flags(), targets)
		},
	}
}

func getCmdNew(gs *state.GlobalState, root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "new [url]",
		Short: "Open a new target",
		Long: "Open a new target, navigated to url when it is given. The url is passed\n" +
			"to the browser without any escaping.",
		Example: getExampleText(gs, `
  # Open a blank page
  {{.}} new

  # Open a page at the given address
  {{.}} new https://example.com`[1:]),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.newBrowserSession(cmd.Flags())
			if err != nil {
				return err
			}
			defer s.cancel()

			var rawURL string
			if len(args) > 0 {
				rawURL = args[0]
			}
			target, err := s.client.New(s.ctx, rawURL)
			if err != nil {
				return s.browserError(err)
			}
			return printResult(gs, cmd.Flags(), target)
		},
	}
}

func getCmdActivate(gs *state.GlobalState, root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Bring a target to the foreground",
		Args:  exactArgsWithMsg(1, "arg should be the id of a target"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.newBrowserSession(cmd.Flags())
			if err != nil {
				return err
			}
			defer s.cancel()

			if err := s.client.Activate(s.ctx, args[0]); err != nil {
				return s.browserError(err)
			}
			gs.Logger.Infof("Activated target %s", args[0])
			return nil
		},
	}
}

func getCmdClose(gs *state.GlobalState, root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "close <id>",
		Short: "Close a target",
		Args:  exactArgsWithMsg(1, "arg should be the id of a target"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.newBrowserSession(cmd.Flags())
			if err != nil {
				return err
			}
			defer s.cancel()

			if err := s.client.Close(s.ctx, args[0]); err != nil {
				return s.browserError(err)
			}
			gs.Logger.Infof("Closed target %s", args[0])
			return nil
		},
	}
}

func getCmdVersion(gs *state.GlobalState, root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version metadata of the browser",
		Long: "Show the version metadata the browser reports about itself. Use\n" +
			"build-info for the version of this binary.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.newBrowserSession(cmd.Flags())
			if err != nil {
				return err
			}
			defer s.cancel()

			info, err := s.client.Version(s.ctx)
			if err != nil {
				return s.browserError(err)
			}
			return printResult(gs, cmd.Flags(), info)
		},
	}
}
