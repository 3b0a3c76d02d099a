// Package cmd defines the nightshift command tree. Commands stay thin: they
// load configuration, build the collaborators, and hand off to the internal
// packages that do the work.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nightshift-labs/nightshift/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "nightshift",
	Short: "Overnight code-change pipeline",
	Long: `Nightshift reads a markdown task checklist, implements each unchecked
task in an isolated git worktree using a configurable code-generation
backend, commits per task, and opens one pull request per task group.

Point it at a repository (or a manifest of repositories), schedule it
overnight, and review branches and pull requests in the morning.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/nightshift/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/nightshift")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NIGHTSHIFT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., NIGHTSHIFT_PUBLISH_DRAFT for publish.draft
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
