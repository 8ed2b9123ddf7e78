package main

import (
	"fmt"
	rtdebug "runtime/debug"

	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X main.version=..." for release builds.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := rtdebug.ReadBuildInfo()
		fmt.Fprintln(cmd.OutOrStdout(), versionString(version, info))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// versionString prefers the linker-set version, then the module version from
// go install, and appends the VCS revision and toolchain when known.
func versionString(linked string, info *rtdebug.BuildInfo) string {
	v := linked
	if info == nil {
		return "rankwatch " + v
	}
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}

	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" {
		if dirty {
			revision += "-dirty"
		}
		v += " (" + revision + ")"
	}
	if info.GoVersion != "" {
		v += " " + info.GoVersion
	}
	return "rankwatch " + v
}
