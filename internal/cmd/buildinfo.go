package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/devtools/cmd/state"
	"github.com/liuxd6825/devtools/lib/consts"
)

type buildInfoCmd struct {
	gs     *state.GlobalState
	isJSON bool
}

func (c *buildInfoCmd) run(_ *cobra.Command, _ []string) error {
	if !c.isJSON {
		printToStdout(c.gs, fmt.Sprintf("%s v%s\n", c.gs.BinaryName, consts.FullVersion()))
		return nil
	}

	jsonDetails, err := json.Marshal(consts.VersionDetails())
	if err != nil {
		return fmt.Errorf("failed produce a JSON version details: %w", err)
	}

	_, err = fmt.Fprintln(c.gs.Stdout, string(jsonDetails))
	return err
}

func getCmdBuildInfo(gs *state.GlobalState, _ *rootCommand) *cobra.Command {
	buildInfoCmd := &buildInfoCmd{gs: gs}

	cmd := &cobra.Command{
		Use:   "build-info",
		Short: "Show the version of this binary",
		Long:  `Show the version of this binary and exit. The version command reports the browser's.`,
		Args:  cobra.NoArgs,
		RunE:  buildInfoCmd.run,
	}

	cmd.Flags().BoolVar(&buildInfoCmd.isJSON, "json", false, "if set, output version information will be in JSON format")

	return cmd
}
