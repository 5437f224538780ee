package state

import "path/filepath"

const defaultConfigFileName = "config.json"

// GlobalOptions contains global config values that apply for all devtools
// sub-commands.
type GlobalOptions struct {
	ConfigFilePath string
	NoColor        bool
	LogOutput      string
	LogFormat      string
	TracesOutput   string
	Verbose        bool
}

// GetDefaultGlobalOptions returns the default global flags.
func GetDefaultGlobalOptions(confDir string) GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: filepath.Join(confDir, "devtools", defaultConfigFileName),
		LogOutput:      "stderr",
		TracesOutput:   "none",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, env map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := env["DEVTOOLS_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["DEVTOOLS_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["DEVTOOLS_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if val, ok := env["DEVTOOLS_TRACES_OUTPUT"]; ok {
		result.TracesOutput = val
	}
	if env["DEVTOOLS_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if env["DEVTOOLS_VERBOSE"] != "" {
		result.Verbose = true
	}
	return result
}
