package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/devtools/cmd/state"
	"github.com/liuxd6825/devtools/devtools"
	"github.com/liuxd6825/devtools/lib/fsext"
)

// protocolSummary is what the protocol command prints unless the whole
// descriptor is requested.
type protocolSummary struct {
	FromChrome bool        `json:"fromChrome"`
	Version    interface{} `json:"version,omitempty"`
	Domains    []string    `json:"domains"`
}

func summarizeProtocol(p *devtools.Protocol) protocolSummary {
	summary := protocolSummary{
		FromChrome: p.FromChrome,
		Version:    p.Descriptor["version"],
		Domains:    []string{},
	}
	domains, _ := p.Descriptor["domains"].([]interface{})
	for _, d := range domains {
		domain, _ := d.(map[string]interface{})
		if name, ok := domain["domain"].(string); ok {
			summary.Domains = append(summary.Domains, name)
		}
	}
	return summary
}

type cmdProtocol struct {
	gs   *state.GlobalState
	root *rootCommand

	descriptor bool
	outFile    string
	embedded   bool
}

func (c *cmdProtocol) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.BoolVar(&c.descriptor, "descriptor", false, "print the whole protocol descriptor instead of a summary")
	flags.StringVarP(&c.outFile, "out", "o", "", "write the protocol descriptor as JSON to this file")
	must(cobra.MarkFlagFilename(flags, "out"))
	flags.BoolVar(&c.embedded, "embedded", false, "use the embedded schema without contacting the browser")
	return flags
}

func (c *cmdProtocol) run(cmd *cobra.Command, _ []string) error {
	var p *devtools.Protocol
	if c.embedded {
		p = devtools.FallbackProtocol()
	} else {
		s, err := c.root.newBrowserSession(cmd.Flags())
		if err != nil {
			return err
		}
		defer s.cancel()
		p = s.client.Protocol(s.ctx)
	}

	if !p.FromChrome {
		c.gs.Logger.Debug("Using the embedded protocol schema")
	}

	if c.outFile != "" {
		data, err := json.MarshalIndent(p.Descriptor, "", "  ")
		if err != nil {
			return fmt.Errorf("could not marshal the protocol descriptor: %w", err)
		}
		if err := fsext.WriteFile(c.gs.FS, c.outFile, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("could not write the protocol descriptor to %q: %w", c.outFile, err)
		}
		c.gs.Logger.Infof("Protocol descriptor written to %s", c.outFile)
	}

	if c.descriptor {
		return printResult(c.gs, cmd.Flags(), p)
	}
	return printResult(c.gs, cmd.Flags(), summarizeProtocol(p))
}

func getCmdProtocol(gs *state.GlobalState, root *rootCommand) *cobra.Command {
	c := &cmdProtocol{gs: gs, root: root}

	protocolCmd := &cobra.Command{
		Use:   "protocol",
		Short: "Resolve the protocol schema of the browser",
		Long: "Resolve the protocol schema matching the revision the browser was built\n" +
			"from. When the browser or the schema hosts can't be reached, the schema\n" +
			"embedded in this binary is used and fromChrome is false.",
		Example: getExampleText(gs, `
  # Print whether the schema comes from the browser's revision and its domains
  {{.}} protocol

  # Save the whole schema
  {{.}} protocol --out protocol.json`[1:]),
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	protocolCmd.Flags().AddFlagSet(c.flagSet())
	return protocolCmd
}
