package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build details",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		printVersion(cmd.OutOrStdout(), buildDetails(info))
	},
}

type build struct {
	Version  string
	Module   string
	Revision string
	Time     string
	Modified bool
	Go       string
}

// buildDetails prefers the -ldflags version and falls back to the module
// version recorded by go install.
func buildDetails(info *debug.BuildInfo) build {
	b := build{Version: version, Go: runtime.Version()}
	if info == nil {
		return b
	}
	b.Module = info.Main.Path
	if b.Version == "(devel)" && info.Main.Version != "" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
		case "vcs.time":
			b.Time = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func printVersion(w io.Writer, b build) {
	fmt.Fprintln(w, "ankigen", b.Version)
	if b.Module != "" {
		fmt.Fprintf(w, "  module  %s\n", b.Module)
	}
	if b.Revision != "" {
		rev := b.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if b.Modified {
			rev += "-dirty"
		}
		if b.Time != "" {
			rev += " (" + b.Time + ")"
		}
		fmt.Fprintf(w, "  commit  %s\n", rev)
	}
	fmt.Fprintf(w, "  go      %s\n", b.Go)
}
