package cmd

import (
	"fmt"

	"github.com/haasonsaas/buildli/pkg/core/version"
	"github.com/spf13/cobra"
)

var updateChannel string

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer buildli release",
	RunE:  runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(&updateChannel, "channel", "stable", "release channel")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	fmt.Printf("%s current version: %s (channel %s)\n", infoMark, version.Version, updateChannel)
	fmt.Println()
	fmt.Println("buildli does not self-update. Get the latest release with:")
	fmt.Println("  go install github.com/haasonsaas/buildli/cmd/buildli@latest")
	fmt.Println("or download it from:")
	fmt.Println("  https://github.com/haasonsaas/buildli/releases")
	return nil
}
