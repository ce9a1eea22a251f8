package main

import (
	"os"

	"github.com/forest-guardian/geotile-dataset/internal/cache"
	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/properties"
	"github.com/forest-guardian/geotile-dataset/internal/ui"
	"github.com/spf13/cobra"
)

var (
	cfg        properties.Config
	envFiles   []string
	noProgress bool
	noBanner   bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geotile",
		Short:         "Build geohash tiled satellite imagery datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !noBanner {
				ui.PrintBanner()
			}
			var err error
			cfg, err = properties.Load(envFiles...)
			return err
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env", []string{".env", "../.env", "../../.env"}, "environment files to load when present")
	root.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "hide progress bars")
	root.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "do not print the banner")

	root.AddCommand(
		newCoverCmd(),
		newPlanCmd(),
		newFetchCmd(),
		newOrganizeCmd(),
		newTrajectoriesCmd(),
		newCropsCmd(),
		newPOIGeoJSONCmd(),
		newPreviewCmd(),
		newServeCmd(),
	)
	return root
}

func coverageCache(disabled bool) cache.CacheService[coverage.Set] {
	if disabled {
		return nil
	}
	return cache.NewFileCache[coverage.Set](cfg.RootPath, "coverage")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
