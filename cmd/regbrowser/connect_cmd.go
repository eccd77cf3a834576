package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fluxcd/regbrowser/pkg/credentials"
	"github.com/fluxcd/regbrowser/pkg/registry"
)

type connectOpts struct {
	*rootOpts
	username      string
	password      string
	passwordStdin bool
	dockerConfig  string
}

func newConnect(parent *rootOpts) *connectOpts {
	return &connectOpts{rootOpts: parent}
}

func (opts *connectOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect URL",
		Short: "Save credentials for a registry, and check they work.",
		Example: makeExample(
			"regbrowser connect https://registry.example.com -u me --password-stdin < token.txt",
			"regbrowser connect localhost:5000",
			"regbrowser connect registry.example.com --docker-config ~/.docker/config.json",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "registry username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "registry password")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&opts.dockerConfig, "docker-config", "", "take the username and password from this docker config.json")
	return cmd
}

func (opts *connectOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "URL"); err != nil {
		return err
	}
	registryURL := args[0]

	if opts.passwordStdin {
		if opts.password != "" {
			return newUsageError("please supply only one of --password, --password-stdin")
		}
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "reading password from stdin")
		}
		opts.password = strings.TrimRight(line, "\r\n")
	}

	if opts.dockerConfig != "" && opts.username == "" && opts.password == "" {
		creds, err := credentials.FromDockerConfig(opts.dockerConfig, registryURL)
		if err != nil {
			return err
		}
		opts.username, opts.password = creds.Username, creds.Password
	}

	if err := opts.Browser.Connect(context.Background(), registryURL, opts.username, opts.password); err != nil {
		return err
	}

	creds := opts.Browser.Credentials()
	storage := opts.Browser.StorageInfo()
	fmt.Fprintf(opts.out, "Connected to %s as %s (%d repositories).\n", creds.RegistryURL, who(creds.Username), len(opts.Browser.KnownRepositories()))
	fmt.Fprintf(opts.out, "Credentials %s.\n", storage.Description)
	return nil
}

func who(username string) string {
	if username == "" {
		return "anonymous"
	}
	return username
}

type disconnectOpts struct {
	*rootOpts
}

func newDisconnect(parent *rootOpts) *disconnectOpts {
	return &disconnectOpts{rootOpts: parent}
}

func (opts *disconnectOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the saved credentials. Cached listings are kept.",
		RunE:  opts.RunE,
	}
}

func (opts *disconnectOpts) RunE(_ *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if err := opts.Browser.Disconnect(); err != nil {
		return err
	}
	fmt.Fprintln(opts.out, "Disconnected.")
	return nil
}

type statusOpts struct {
	*rootOpts
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether saved credentials still work.",
		RunE:  opts.RunE,
	}
}

func (opts *statusOpts) RunE(_ *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	ok, err := opts.Browser.Reconnect(context.Background())
	if registry.IsAuthentication(err) || registry.IsConfiguration(err) {
		return errors.Wrap(err, "saved credentials no longer work and have been cleared")
	}
	if err != nil {
		return errors.Wrap(err, "checking saved credentials")
	}
	out := newTabwriter(opts.out)
	defer out.Flush()
	if !ok {
		fmt.Fprintln(out, "STATUS:\tnot connected")
		return nil
	}
	creds := opts.Browser.Credentials()
	storage := opts.Browser.StorageInfo()
	fmt.Fprintln(out, "STATUS:\tconnected")
	fmt.Fprintf(out, "REGISTRY:\t%s\n", creds.RegistryURL)
	fmt.Fprintf(out, "USER:\t%s\n", who(creds.Username))
	fmt.Fprintf(out, "REPOSITORIES:\t%d\n", len(opts.Browser.KnownRepositories()))
	fmt.Fprintf(out, "CREDENTIALS:\t%s (%s, secure: %v)\n", storage.Method, storage.Description, storage.Secure)
	return nil
}
