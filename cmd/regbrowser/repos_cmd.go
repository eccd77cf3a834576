package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxcd/regbrowser/pkg/browser"
)

type reposOpts struct {
	*rootOpts
	filters []string
	refresh bool
}

func newRepos(parent *rootOpts) *reposOpts {
	return &reposOpts{rootOpts: parent}
}

func (opts *reposOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "repos",
		Aliases: []string{"repositories"},
		Short:   "List the repositories in the registry.",
		Example: makeExample(
			"regbrowser repos",
			"regbrowser repos --filter 'library/*' --filter 'regexp:^team/.*-api$'",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "only show repositories matching this pattern (glob, or regexp: prefixed)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore the cached listing")
	return cmd
}

func (opts *reposOpts) RunE(_ *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	matchers, err := browser.ParsePatterns(opts.filters)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := opts.connected(ctx); err != nil {
		return err
	}

	var repositories []string
	if opts.refresh {
		repositories, err = opts.Browser.RefreshRepositories(ctx)
	} else {
		repositories, err = opts.Browser.Repositories(ctx)
	}
	if err != nil {
		return err
	}
	for _, name := range browser.Filter(repositories, matchers...) {
		fmt.Fprintln(opts.out, name)
	}
	return nil
}

type tagsOpts struct {
	*rootOpts
	filters  []string
	bySemver bool
	refresh  bool
}

func newTags(parent *rootOpts) *tagsOpts {
	return &tagsOpts{rootOpts: parent}
}

func (opts *tagsOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags REPOSITORY",
		Short: "List the tags of a repository.",
		Example: makeExample(
			"regbrowser tags library/nginx",
			"regbrowser tags library/nginx --semver --filter 'semver:~1.17'",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "only show tags matching this pattern (glob, semver: or regexp: prefixed)")
	cmd.Flags().BoolVar(&opts.bySemver, "semver", false, "order by version, newest first")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore the cached listing")
	return cmd
}

func (opts *tagsOpts) RunE(_ *cobra.Command, args []string) error {
	if err := wantArgs(args, "REPOSITORY"); err != nil {
		return err
	}
	matchers, err := browser.ParsePatterns(opts.filters)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := opts.connected(ctx); err != nil {
		return err
	}
	opts.Browser.SelectRepository(args[0])

	var tags []string
	if opts.refresh {
		tags, err = opts.Browser.RefreshTags(ctx, args[0])
	} else {
		tags, err = opts.Browser.Tags(ctx, args[0])
	}
	if err != nil {
		return err
	}
	for _, tag := range browser.SortTags(browser.Filter(tags, matchers...), opts.bySemver) {
		fmt.Fprintln(opts.out, tag)
	}
	return nil
}
