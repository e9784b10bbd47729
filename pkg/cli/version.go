package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is set at build time with
// -ldflags "-X github.com/platinummonkey/protolink/pkg/cli.Version=v1.2.3".
var Version = "dev"

func versionDetails() map[string]string {
	details := map[string]string{
		"version":    Version,
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				details["commit"] = s.Value
			}
		}
	}
	return details
}

func getVersionCmd(gs *globalState) *cobra.Command {
	var isJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			details := versionDetails()
			if isJSON {
				return writeJSON(gs.stdout, details)
			}
			fmt.Fprintf(gs.stdout, "protolink %s (%s, %s/%s)\n",
				details["version"], details["go_version"], details["go_os"], details["go_arch"])
			return nil
		},
	}
	cmd.Flags().BoolVar(&isJSON, "json", false, "print version details as JSON")
	return cmd
}
