package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

type versionOpts struct {
	short bool
}

func newVersionCommand() *cobra.Command {
	opts := &versionOpts{}
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the regbrowser version.",
		// needs neither credentials nor a cache
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE:              opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.short, "short", false, "print just the version")
	return cmd
}

func (opts *versionOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	v := version
	if v == "" {
		v = "unversioned"
	}
	if opts.short {
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "regbrowser %s (%s %s/%s)\n", v, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
