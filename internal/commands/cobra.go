package commands

import (
	"github.com/spf13/cobra"
)

// CheckCmd represents the check command
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check for a new version",
	Long:  "Query the configured feed and report whether a newer version is available",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		RunCheck(force)
	},
}

func init() {
	CheckCmd.Flags().BoolP("force", "f", false, "Bypass the check cooldown")
}

// DownloadCmd represents the download command
var DownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the available update",
	Long:  "Download and stage the update reported by the last check",
	Run: func(cmd *cobra.Command, args []string) {
		RunDownload()
	},
}

// InstallCmd represents the install command
var InstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the downloaded update and restart",
	Long:  "Swap the staged binary into place and relaunch the process",
	Run: func(cmd *cobra.Command, args []string) {
		RunInstall()
	},
}

// UpdateCmd runs the full check/download/install cycle in one step.
var UpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update drift to the latest version",
	Long:  "Check for, download, and install the latest version in one step",
	Run: func(cmd *cobra.Command, args []string) {
		RunUpdate()
	},
}

// ConfigCmd is the parent command for feed and channel configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage update configuration",
	Long:  "Inspect or change the update feed and release channel",
}

// FeedCmd is the parent command for feed configuration.
var FeedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Manage the update feed",
}

// FeedGetCmd shows the active feed configuration.
var FeedGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the configured feed",
	Run: func(cmd *cobra.Command, args []string) {
		RunFeedGet()
	},
}

// FeedSetCmd points the updater at a different feed.
var FeedSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Configure the update feed",
	Long:  "Point the updater at a generic manifest URL or a GitHub repository",
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := cmd.Flags().GetString("source")
		url, _ := cmd.Flags().GetString("url")
		owner, _ := cmd.Flags().GetString("owner")
		repo, _ := cmd.Flags().GetString("repo")
		RunFeedSet(source, url, owner, repo)
	},
}

func init() {
	FeedSetCmd.Flags().String("source", "generic", "Feed source: generic or github")
	FeedSetCmd.Flags().String("url", "", "Base URL of a generic feed")
	FeedSetCmd.Flags().String("owner", "", "GitHub repository owner")
	FeedSetCmd.Flags().String("repo", "", "GitHub repository name")

	FeedCmd.AddCommand(FeedGetCmd)
	FeedCmd.AddCommand(FeedSetCmd)

	ChannelCmd.AddCommand(ChannelGetCmd)
	ChannelCmd.AddCommand(ChannelSetCmd)

	ConfigCmd.AddCommand(FeedCmd)
	ConfigCmd.AddCommand(ChannelCmd)
}

// ChannelCmd is the parent command for release-channel configuration.
var ChannelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Manage the release channel",
}

// ChannelGetCmd shows the persisted channel preference.
var ChannelGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the release channel",
	Run: func(cmd *cobra.Command, args []string) {
		RunChannelGet()
	},
}

// ChannelSetCmd switches between stable and prerelease.
var ChannelSetCmd = &cobra.Command{
	Use:       "set <stable|prerelease>",
	Short:     "Switch the release channel",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"stable", "prerelease"},
	Run: func(cmd *cobra.Command, args []string) {
		RunChannelSet(args[0])
	},
}

// StatusCmd represents the status command
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show updater state",
	Long:  "Show the current update phase, versions, and download progress",
	Run: func(cmd *cobra.Command, args []string) {
		watch, _ := cmd.Flags().GetBool("watch")
		addr, _ := cmd.Flags().GetString("addr")
		RunStatus(watch, addr)
	},
}

func init() {
	StatusCmd.Flags().BoolP("watch", "w", false, "Follow updater events live")
	StatusCmd.Flags().String("addr", defaultServeAddr, "Address of a running drift serve instance")
}

// ServeCmd represents the serve command
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the update service",
	Long:  "Serve the updater HTTP API and WebSocket event stream, with periodic background checks",
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		RunServe(addr)
	},
}

func init() {
	ServeCmd.Flags().String("addr", defaultServeAddr, "Listen address")
}

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		RunVersion()
	},
}
