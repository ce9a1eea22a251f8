package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/geotile-dataset/internal/aoi"
	"github.com/forest-guardian/geotile-dataset/internal/api"
	"github.com/forest-guardian/geotile-dataset/internal/delivery"
	"github.com/forest-guardian/geotile-dataset/internal/notification"
	"github.com/forest-guardian/geotile-dataset/internal/organize"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/sentinel"
	"github.com/forest-guardian/geotile-dataset/internal/ui"
	"github.com/spf13/cobra"
)

func newCoverCmd() *cobra.Command {
	var (
		flags coverFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "cover",
		Short: "List the geohash cells covering an area of interest",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, set, err := flags.cover()
			if err != nil {
				return err
			}
			if out == "" {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "    ")
				return encoder.Encode(set)
			}
			data, err := json.MarshalIndent(set, "", "    ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			ui.PrintSuccess("Coverage written to " + out)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "write the coverage to this JSON file instead of stdout")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var (
		flags   planFlags
		save    string
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan the fetch requests for an area and date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, requests, err := flags.plan(cmd)
			if err != nil {
				return err
			}
			if save == "" && csvPath == "" {
				return planner.EncodeRequests(cmd.OutOrStdout(), requests)
			}
			if save != "" {
				if err := planner.SaveRequests(save, requests); err != nil {
					return err
				}
				ui.PrintSuccess("Requests saved to " + save)
			}
			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := planner.WriteRequestsCSV(f, requests); err != nil {
					return err
				}
				ui.PrintSuccess("Requests written to " + csvPath)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&save, "save", "", "save the requests as JSON (requests.json)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the requests as CSV")
	return cmd
}

func newFetchCmd() *cobra.Command {
	var (
		flags      planFlags
		input      string
		out        string
		collection string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the imagery of a plan",
		Long: "Download one GeoTIFF per request into <out>/area and <out>/poi. The input is " +
			"either a saved request list or a GeoJSON area of interest planned with the plan flags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := sentinel.CollectionByName(collection)
			if err != nil {
				return err
			}
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			saved, err := isRequestList(input)
			if err != nil {
				return err
			}

			var requests []planner.Request
			if saved {
				if requests, err = planner.LoadRequests(input); err != nil {
					return err
				}
				ui.PrintInfof("Loaded %d requests from %s", len(requests), input)
			} else {
				flags.aoi = input
				if _, _, requests, err = flags.plan(cmd); err != nil {
					return err
				}
			}
			precision, err := delivery.PrecisionOf(requests)
			if err != nil {
				return err
			}

			opts := delivery.DatasetOptions{
				OutDir:     out,
				Collection: coll,
				Precision:  precision,
				Workers:    cfg.Fetch.Workers,
				Seed:       cfg.Plan.Seed,
				Progress:   !noProgress,
			}
			if workers > 0 {
				opts.Workers = workers
			}
			client := sentinel.NewClient(cfg.Copernicus, cfg.Fetch, coll)
			meta, err := delivery.CreateDataset(cmd.Context(), client, notification.NewDiscord(cfg.Discord), requests, opts)
			if err != nil {
				return err
			}
			if meta.Summary.Failed > 0 {
				ui.PrintWarning(meta.Summary.String())
				for _, e := range meta.Summary.Errors {
					ui.PrintWarning(e)
				}
				return nil
			}
			ui.PrintSuccess(fmt.Sprintf("Plan %s: %s", meta.PlanID, meta.Summary))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Lookup("aoi").Hidden = true
	cmd.Flags().StringVar(&input, "input", "", "saved requests (JSON array) or GeoJSON area of interest")
	cmd.Flags().StringVar(&out, "out", "dataset", "output directory")
	cmd.Flags().StringVar(&collection, "collection", sentinel.Sentinel2L2A.Name, "sentinel-2-l2a or sentinel-2-l1c")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel downloads (default GEOTILE_WORKERS)")
	return cmd
}

func newOrganizeCmd() *cobra.Command {
	var opts organize.Options
	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Split downloaded archives into per band files under label directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.DownloadDir == "" || opts.OutDir == "" {
				return fmt.Errorf("--download-dir and --out are required")
			}
			opts.Progress = !noProgress
			summary, err := organize.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for _, e := range summary.Errors {
				ui.PrintWarning(e)
			}
			ui.PrintSuccess(summary.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.DownloadDir, "download-dir", "", "directory written by fetch")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "output directory")
	cmd.Flags().StringVar(&opts.PositiveLabel, "positive", "positive", "directory name for point of interest tiles")
	cmd.Flags().StringVar(&opts.NegativeLabel, "negative", "negative", "directory name for background tiles")
	cmd.Flags().BoolVar(&opts.Flatten, "flatten", false, "write every file directly into the output directory")
	cmd.Flags().BoolVar(&opts.CopyMetadata, "copy-metadata", true, "copy metadata.json next to the organised files")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "archives processed in parallel")
	return cmd
}

func newTrajectoriesCmd() *cobra.Command {
	var opts delivery.TrajectoryOptions
	cmd := &cobra.Command{
		Use:   "trajectories",
		Short: "Rasterize HYSPLIT swarm trajectories into a geohash table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Precision == 0 {
				opts.Precision = cfg.Grid.Precision
			}
			opts.Progress = !noProgress
			n, err := delivery.ExtractTrajectories(opts)
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("%d rows written to %s", n, opts.OutputFile))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.InputDir, "input", "", "directory of <swarm>.zip archives")
	cmd.Flags().StringVar(&opts.OutputFile, "out", "trajectories.csv", "output CSV")
	cmd.Flags().IntVar(&opts.Precision, "precision", 0, "geohash precision (default GEOTILE_PRECISION)")
	return cmd
}

func newCropsCmd() *cobra.Command {
	var opts delivery.CropOptions
	cmd := &cobra.Command{
		Use:   "crops",
		Short: "Map SPAM crop statistics onto geohash cells",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Precision == 0 {
				opts.Precision = cfg.Grid.Precision
			}
			n, err := delivery.ExtractCrops(opts)
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("%d cells written to %s", n, opts.OutputFile))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.InputFile, "input", "", "SPAM CSV with iso3, x, y and crop columns")
	cmd.Flags().StringVar(&opts.OutputFile, "out", "output.csv", "output CSV")
	cmd.Flags().StringVar(&opts.Country, "country", "", "ISO3 code to keep")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "crop columns to copy")
	cmd.Flags().IntVar(&opts.Precision, "precision", 0, "geohash precision (default GEOTILE_PRECISION)")
	return cmd
}

func newPOIGeoJSONCmd() *cobra.Command {
	var (
		input, out string
		columns    = aoi.DefaultCSVColumns
	)
	cmd := &cobra.Command{
		Use:   "poi-geojson",
		Short: "Convert a CSV of dated locations into point of interest GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = strings.TrimSuffix(input, filepath.Ext(input)) + ".geojson"
			}
			n, err := delivery.ConvertPOIs(input, out, columns)
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("%d points written to %s", n, out))
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CSV file")
	cmd.Flags().StringVar(&out, "out", "", "GeoJSON file (default input name with .geojson)")
	cmd.Flags().StringVar(&columns.Longitude, "lon-column", columns.Longitude, "longitude column")
	cmd.Flags().StringVar(&columns.Latitude, "lat-column", columns.Latitude, "latitude column")
	cmd.Flags().StringVar(&columns.Date, "date-column", columns.Date, "date column")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var (
		flags    coverFlags
		requests string
		opts     delivery.PreviewOptions
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the coverage, and optionally a saved plan, to PNG and GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			polygon, set, err := flags.cover()
			if err != nil {
				return err
			}
			var planned []planner.Request
			if requests != "" {
				if planned, err = planner.LoadRequests(requests); err != nil {
					return err
				}
			}
			if err := delivery.Preview(polygon, set, planned, opts); err != nil {
				return err
			}
			ui.PrintSuccess("Preview written")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&requests, "requests", "", "saved requests to highlight")
	cmd.Flags().StringVar(&opts.ImageFile, "image", "preview.png", "PNG output, empty to skip")
	cmd.Flags().StringVar(&opts.GeoJSONFile, "geojson", "", "GeoJSON output, empty to skip")
	cmd.Flags().IntVar(&opts.Width, "width", 1024, "image width in pixels")
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		port    int
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve coverage, planning and rasterization over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == 0 {
				port = cfg.Port
			}
			router := api.NewRouter(api.NewHandler(cfg, coverageCache(noCache)))
			ui.PrintInfof("Listening on :%d", port)
			return router.Run(fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default GEOTILE_PORT)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the coverage cache")
	return cmd
}
