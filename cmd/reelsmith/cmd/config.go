package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/reelsmith/reelsmith/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing reelsmith configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  reelsmith config dump > .reelsmith.yaml

Configuration can be set via:
  - Config file (.reelsmith.yaml, /etc/reelsmith/.reelsmith.yaml)
  - Environment variables (REELSMITH_SERVER_PORT, DATABASE_URL, etc.)
  - Command-line flags (for some options)

Nested keys use the REELSMITH_ prefix with underscores:
server.port -> REELSMITH_SERVER_PORT. A handful of operational knobs
also accept bare names (DATABASE_URL, OUTPUT_DIR, MAX_UPLOAD_MB).`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)

	yamlData, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# reelsmith Configuration File")
	fmt.Println("# ============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
