package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type manifestOpts struct {
	*rootOpts
}

func newManifest(parent *rootOpts) *manifestOpts {
	return &manifestOpts{rootOpts: parent}
}

func (opts *manifestOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "manifest REPOSITORY REFERENCE",
		Short:   "Print a manifest, by tag or digest, as the registry sent it.",
		Example: makeExample("regbrowser manifest library/nginx 1.17"),
		RunE:    opts.RunE,
	}
}

func (opts *manifestOpts) RunE(_ *cobra.Command, args []string) error {
	if err := wantArgs(args, "REPOSITORY", "REFERENCE"); err != nil {
		return err
	}
	ctx := context.Background()
	if err := opts.connected(ctx); err != nil {
		return err
	}
	m, err := opts.Browser.Manifest(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if m.Digest != "" {
		fmt.Fprintf(os.Stderr, "Digest: %s\n", m.Digest)
	}
	raw := []byte(m.Raw)
	if len(raw) == 0 {
		if raw, err = json.Marshal(m); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(opts.out, string(raw))
	return err
}

type blobOpts struct {
	*rootOpts
}

func newBlob(parent *rootOpts) *blobOpts {
	return &blobOpts{rootOpts: parent}
}

func (opts *blobOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "blob REPOSITORY DIGEST",
		Short:   "Show the size and type of a blob, without downloading it.",
		Example: makeExample("regbrowser blob library/nginx sha256:..."),
		RunE:    opts.RunE,
	}
}

func (opts *blobOpts) RunE(_ *cobra.Command, args []string) error {
	if err := wantArgs(args, "REPOSITORY", "DIGEST"); err != nil {
		return err
	}
	ctx := context.Background()
	if err := opts.connected(ctx); err != nil {
		return err
	}
	info, err := opts.Browser.BlobHead(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	w := newTabwriter(opts.out)
	fmt.Fprintf(w, "DIGEST:\t%s\n", info.Digest)
	fmt.Fprintf(w, "SIZE:\t%s (%d bytes)\n", humanSize(info.Size), info.Size)
	fmt.Fprintf(w, "TYPE:\t%s\n", info.ContentType)
	return w.Flush()
}

type deleteOpts struct {
	*rootOpts
}

func newDelete(parent *rootOpts) *deleteOpts {
	return &deleteOpts{rootOpts: parent}
}

func (opts *deleteOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "delete REPOSITORY DIGEST",
		Short: "Delete a manifest by digest.",
		Long: `Delete a manifest by digest. Every tag pointing at it goes too.

The registry must have deletes enabled, and the blobs are only
reclaimed by the registry's garbage collection.`,
		Example: makeExample("regbrowser delete team/app sha256:..."),
		RunE:    opts.RunE,
	}
}

func (opts *deleteOpts) RunE(_ *cobra.Command, args []string) error {
	if err := wantArgs(args, "REPOSITORY", "DIGEST"); err != nil {
		return err
	}
	ctx := context.Background()
	if err := opts.connected(ctx); err != nil {
		return err
	}
	if err := opts.Browser.DeleteManifest(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(opts.out, "Deleted %s@%s.\n", args[0], args[1])
	return nil
}
