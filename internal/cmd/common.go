package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/devtools/cmd/state"
	"github.com/liuxd6825/devtools/errext"
	"github.com/liuxd6825/devtools/errext/exitcodes"
	"github.com/liuxd6825/devtools/lib/types"
)

// Panic if the given error is not nil.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

func getNullInt64(flags *pflag.FlagSet, key string) null.Int {
	v, err := flags.GetInt64(key)
	if err != nil {
		panic(err)
	}
	return null.NewInt(v, flags.Changed(key))
}

func getNullDuration(flags *pflag.FlagSet, key string) types.NullDuration {
	v, err := flags.GetDuration(key)
	if err != nil {
		panic(err)
	}
	return types.NullDuration{Duration: types.Duration(v), Valid: flags.Changed(key)}
}

func getNullString(flags *pflag.FlagSet, key string) null.String {
	v, err := flags.GetString(key)
	if err != nil {
		panic(err)
	}
	return null.NewString(v, flags.Changed(key))
}

func exactArgsWithMsg(n int, msg string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("accepts %d arg(s), received %d: %s", n, len(args), msg)
		}
		return nil
	}
}

func printToStdout(gs *state.GlobalState, s string) {
	if _, err := fmt.Fprint(gs.Stdout, s); err != nil {
		gs.Logger.Errorf("could not print '%s' to stdout: %s", s, err.Error())
	}
}

func getExampleText(gs *state.GlobalState, tpl string) string {
	var exampleText bytes.Buffer
	exampleTemplate := template.Must(template.New("").Parse(tpl))

	if err := exampleTemplate.Execute(&exampleText, gs.BinaryName); err != nil {
		gs.Logger.WithError(err).Error("Error during help example generation")
	}

	return exampleText.String()
}

// Trap Interrupts, SIGINTs and SIGTERMs and call the given.
func handleAbortSignals(gs *state.GlobalState, onInterrupt func(os.Signal)) (stop func()) {
	gs.Logger.Debug("Trapping interrupt signals so devtools can handle them gracefully...")
	sigC := make(chan os.Signal, 2)
	done := make(chan struct{})
	gs.SignalNotify(sigC, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigC:
			onInterrupt(sig)
		case <-done:
			return
		}

		select {
		case <-sigC:
			// A second signal means the request didn't stop in time.
			gs.OSExit(int(exitcodes.ExternalAbort))
		case <-done:
			return
		}
	}()

	return func() {
		gs.Logger.Debug("Releasing signal trap...")
		close(done)
		gs.SignalStop(sigC)
	}
}

func outputFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.String("format", "json", "output format of results: json or yaml")
	flags.String("query", "", "gjson path applied to the JSON result before printing, e.g. '#.id'")
	return flags
}

// printResult prints v to stdout in the format chosen with --format, after
// applying the --query path to it.
func printResult(gs *state.GlobalState, flags *pflag.FlagSet, v interface{}) error {
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	query, err := flags.GetString("query")
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal the result: %w", err)
	}
	if query != "" {
		res := gjson.GetBytes(data, query)
		if !res.Exists() {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("query %q didn't match anything in the result", query), exitcodes.InvalidConfig)
		}
		data = []byte(res.Raw)
	}

	switch format {
	case "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		printToStdout(gs, buf.String())
	case "yaml":
		out, err := jsonToYAML(data)
		if err != nil {
			return err
		}
		printToStdout(gs, string(out))
	default:
		return errext.WithExitCodeIfNone(
			fmt.Errorf("unsupported output format %q, use json or yaml", format), exitcodes.InvalidConfig)
	}
	return nil
}

// jsonToYAML re-encodes a JSON document as block style YAML, keeping the
// order of object keys.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("could not convert the result to YAML: %w", err)
	}
	resetStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("could not marshal YAML: %w", err)
	}
	return out, nil
}

func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}
