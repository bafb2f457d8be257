package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toutjavascript/infollama/pkg/config"
)

var (
	// Global flags
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "infollama",
	Short: "Infollama - access-controlled proxy for Ollama",
	Long: `Infollama is a local reverse proxy in front of an Ollama model server.

It resolves bearer tokens to users, restricts endpoints per access tier,
writes an access log and relays generation streams chunk by chunk.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and reports its error on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with INFOLLAMA_* variables")
}

// loadConfig builds the configuration snapshot from the global flags plus
// the command's own overrides.
func loadConfig(overrides func(*config.Config)) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		Path:      cfgFile,
		EnvFile:   envFile,
		Overrides: overrides,
	})
}
