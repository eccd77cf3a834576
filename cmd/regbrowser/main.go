package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	regerr "github.com/fluxcd/regbrowser/pkg/errors"
)

func main() {
	root := newRoot(os.Stdout)
	rootCmd := root.Command()
	cmd, err := rootCmd.ExecuteC()
	root.Close()
	if err != nil {
		var usage usageError
		var help *regerr.Error
		switch {
		case errors.As(err, &usage):
			cmd.Println("")
			cmd.Println(cmd.UsageString())
		case errors.As(err, &help) && help.Help != "":
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprint(os.Stderr, help.Help)
		}
		os.Exit(1)
	}
}
