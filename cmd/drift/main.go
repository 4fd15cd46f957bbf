package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"drift/internal/commands"
	"drift/internal/output"
)

var jsonFlag bool

var rootCmd = &cobra.Command{
	Use:   "drift",
	Short: "A self-updating host service",
	Long:  "drift keeps itself current: it checks a release feed, downloads new versions, and swaps its own binary on install",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")

	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.DownloadCmd)
	rootCmd.AddCommand(commands.InstallCmd)
	rootCmd.AddCommand(commands.UpdateCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)

	// Bare `drift` serves when headless, otherwise shows the live view.
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			commands.RunStatus(true, "")
			return
		}
		commands.RunServe("")
	}
}

func main() {
	// Propagate --json flag before execution
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		output.JSONMode = jsonFlag
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
