package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "  %s %s\n", styleHeader.Render("agentoffice"), styleWorking.Render(version))
			fmt.Fprintf(w, "    %s  %s\n", styleHint.Render("Commit"), styleValue.Render(commit))
			fmt.Fprintf(w, "    %s %s\n", styleHint.Render("OS/Arch"), styleValue.Render(runtime.GOOS+"/"+runtime.GOARCH))
			fmt.Fprintf(w, "    %s      %s\n", styleHint.Render("Go"), styleValue.Render(runtime.Version()))
		},
	}
}
