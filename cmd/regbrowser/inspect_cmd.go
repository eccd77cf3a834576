package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/fluxcd/regbrowser/pkg/browser"
	"github.com/fluxcd/regbrowser/pkg/registry"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

type inspectOpts struct {
	*rootOpts
	outputFormat string
	refresh      bool
}

func newInspect(parent *rootOpts) *inspectOpts {
	return &inspectOpts{rootOpts: parent}
}

func (opts *inspectOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect REPOSITORY TAG",
		Short: "Show the size, platforms and build details of an image.",
		Example: makeExample(
			"regbrowser inspect library/nginx 1.17",
			"regbrowser inspect library/nginx 1.17 -o json",
			"regbrowser inspect library/nginx 1.17 -o yaml",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.outputFormat, "output-format", "o", outputTable, "output format (table, json or yaml)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore the cached details")
	return cmd
}

func (opts *inspectOpts) RunE(_ *cobra.Command, args []string) error {
	if err := wantArgs(args, "REPOSITORY", "TAG"); err != nil {
		return err
	}
	switch opts.outputFormat {
	case outputTable, outputJSON, outputYAML:
	default:
		return errorInvalidOutputFormat
	}
	ctx := context.Background()
	if err := opts.connected(ctx); err != nil {
		return err
	}
	opts.Browser.SelectRepository(args[0])
	opts.Browser.SelectTag(args[1])

	var info *registry.ImageInfo
	var err error
	if opts.refresh {
		info, err = opts.Browser.RefreshImageInfo(ctx, args[0], args[1])
	} else {
		info, err = opts.Browser.ImageInfo(ctx, args[0], args[1])
	}
	if err != nil {
		return err
	}
	switch opts.outputFormat {
	case outputJSON:
		return outputInfoJSON(opts.out, info)
	case outputYAML:
		return outputInfoYAML(opts.out, info)
	}
	outputInfoTable(opts.out, args[0]+":"+args[1], info)
	return nil
}

func outputInfoJSON(out io.Writer, info *registry.ImageInfo) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// outputInfoYAML goes through the JSON encoding, so field names match
// the JSON output.
func outputInfoYAML(out io.Writer, info *registry.ImageInfo) error {
	bs, err := yaml.Marshal(info)
	if err != nil {
		return err
	}
	_, err = out.Write(bs)
	return err
}

func outputInfoTable(out io.Writer, ref string, info *registry.ImageInfo) {
	w := newTabwriter(out)
	fmt.Fprintf(w, "IMAGE:\t%s\n", ref)
	if info.Manifest != nil {
		if info.Manifest.Digest != "" {
			fmt.Fprintf(w, "DIGEST:\t%s\n", info.Manifest.Digest)
		}
		fmt.Fprintf(w, "MEDIA TYPE:\t%s\n", info.Manifest.MediaType)
	}
	fmt.Fprintf(w, "SIZE:\t%s\n", humanSize(info.TotalSize))
	fmt.Fprintf(w, "MULTI-PLATFORM:\t%v\n", info.IsMultiPlatform)
	for _, field := range []struct{ name, value string }{
		{"CREATED", info.Created},
		{"OS", info.OS},
		{"ARCHITECTURE", info.Architecture},
		{"AUTHOR", info.Author},
		{"DOCKER VERSION", info.DockerVersion},
	} {
		if field.value != "" {
			fmt.Fprintf(w, "%s:\t%s\n", field.name, field.value)
		}
	}
	w.Flush()

	platforms := browser.PresentablePlatforms(info)
	if len(platforms) == 0 {
		return
	}
	fmt.Fprintln(out)
	w = newTabwriter(out)
	fmt.Fprintln(w, "PLATFORM\tSIZE\tDIGEST")
	for _, p := range platforms {
		size := ""
		if p.Size > 0 {
			size = humanSize(p.Size)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p, size, p.Digest)
	}
	w.Flush()
}
