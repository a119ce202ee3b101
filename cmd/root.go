package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "mcclink",
	Short:         "Google Ads MCC linking and invitation service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}
