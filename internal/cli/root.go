package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/diagnosis/reservations/internal/cli.Version=..."
var (
	Version = "dev"
	Commit  = "none"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reservations",
		Short:         "Restaurant reservation form and email relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewSubmitCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewEventsCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reservations %s (%s)\n", Version, Commit)
		},
	}
}
