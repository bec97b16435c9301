// Command chatmesh runs scripted multi-agent conversations from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chatmesh",
	Short: "Multi-agent chat orchestration",
	Long: `chatmesh drives conversations between a user and several AI agents.

Configuration:
  The command looks for configuration in:
  1. --config flag (explicit path)
  2. ./chatmesh.yaml

Environment Variables:
  CHATMESH_PROVIDER_NAME     - mock, openai or anthropic
  CHATMESH_PROVIDER_API_KEY  - API key for the provider
  CHATMESH_BACKEND_TYPE      - memory or sqlite
  CHATMESH_LOG_LEVEL         - debug, info, warn or error`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./chatmesh.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newModesCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
