package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/wikinav/internal/nav"
)

var cssCmd = &cobra.Command{
	Use:   "css",
	Short: "Print the navigation bar stylesheet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := io.WriteString(stdout(cmd), nav.Stylesheet())
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if structuredOutputRequested() {
			return printResult(cmd, map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
			})
		}
		printf(cmd, "%s\n", versionLine())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cssCmd)
	rootCmd.AddCommand(versionCmd)
}
