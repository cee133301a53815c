package config

// CLIConfig is the configuration for filelink-cli.
type CLIConfig struct {
	// Server is the filelink-server base URL.
	Server string `json:"server" yaml:"server"`

	// AdminToken authenticates /admin/v1 calls.
	AdminToken string `json:"admin_token,omitempty" yaml:"admin_token,omitempty"`

	// Output is the default output format: table, json or yaml.
	Output string `json:"output" yaml:"output"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: "http://localhost:5080",
		Output: "table",
	}
}
