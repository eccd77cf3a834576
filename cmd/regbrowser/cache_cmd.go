package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

type cacheOpts struct {
	*rootOpts
}

func newCache(parent *rootOpts) *cacheOpts {
	return &cacheOpts{rootOpts: parent}
}

func (opts *cacheOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Look at or clear the cache of registry listings.",
	}
	cmd.AddCommand(
		newCacheStats(opts).Command(),
		newCacheClear(opts).Command(),
	)
	return cmd
}

type cacheStatsOpts struct {
	*cacheOpts
}

func newCacheStats(parent *cacheOpts) *cacheStatsOpts {
	return &cacheStatsOpts{cacheOpts: parent}
}

func (opts *cacheStatsOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how much is cached.",
		RunE:  opts.RunE,
	}
}

func (opts *cacheStatsOpts) RunE(_ *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	stats := opts.Browser.Cache().Stats()
	w := newTabwriter(opts.out)
	fmt.Fprintf(w, "BACKEND:\t%s\n", opts.cacheBackend)
	fmt.Fprintf(w, "ENTRIES:\t%d\n", stats.Entries)
	fmt.Fprintf(w, "SIZE:\t%s\n", humanSize(stats.Bytes))
	return w.Flush()
}

type cacheClearOpts struct {
	*cacheOpts
	namespace string
}

func newCacheClear(parent *cacheOpts) *cacheClearOpts {
	return &cacheClearOpts{cacheOpts: parent}
}

func (opts *cacheClearOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached listings.",
		Example: makeExample(
			"regbrowser cache clear",
			"regbrowser cache clear --namespace tags",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "", "only clear one of: repositories, tags, imageinfo")
	return cmd
}

func (opts *cacheClearOpts) RunE(_ *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	store := opts.Browser.Cache()
	switch ns := cache.Namespace(opts.namespace); ns {
	case "":
		store.ClearAll()
	case cache.NamespaceRepositories, cache.NamespaceTags, cache.NamespaceImageInfo:
		store.ClearNamespace(ns)
	default:
		return newUsageError(fmt.Sprintf("unknown cache namespace %q", opts.namespace))
	}
	fmt.Fprintln(opts.out, "Cache cleared.")
	return nil
}
