package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pennon-io/pennon/pkg/logger"
)

var (
	cfgFile  string
	logLevel string

	version = "dev"
	commit  = "HEAD"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pennon",
	Short: "Feature flag evaluation engine",
	Long: `pennon resolves feature flag values from a JSON configuration of
flags, variants and JsonLogic targeting rules.`,
	SilenceUsage: true,
}

// Execute runs the root command with the build information stamped by the
// release pipeline.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pennon.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".pennon")
	}

	viper.SetEnvPrefix("PENNON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() (*logger.Logger, error) {
	return logger.New(viper.GetString("log-level"))
}
