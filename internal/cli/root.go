package cli

import (
	"github.com/reelforge/reelforge/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	verbose  bool
	portFlag int
)

// NewRootCommand creates and returns the root Cobra command for the Reelforge CLI.
func NewRootCommand(runServerFunc func(cmd *cobra.Command, args []string), versionInfo VersionInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reelforge",
		Short: "Reelforge film pre-production server",
		Long:  `Reelforge decomposes scripts into scenes and shots, tracks custom actor training, and keeps storyboard frames consistent across a production.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitLogger(verbose)
			if verbose {
				logger.Logger.Debug().Msg("Verbose logging enabled.")
			}
			return nil
		},
		Run: runServerFunc,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (e.g., config/reelforge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Port for the reelforge server (overrides config if set)")

	rootCmd.AddCommand(NewVersionCommand(versionInfo))

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the Reelforge server",
		Long:  `Starts the Reelforge server, providing the pre-production API endpoints.`,
		Run:   runServerFunc,
	}
	rootCmd.AddCommand(serverCmd)

	return rootCmd
}
