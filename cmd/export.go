package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/internal/dataset"
	"github.com/temporal-communities/geolit/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [input]",
	Short: "Export located records as GeoJSON and/or shapefile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := cfg.Dataset.Output
		if len(args) > 0 {
			input = args[0]
		}
		if input == "" {
			return eris.New("no input dataset: pass a path or set dataset.output")
		}

		geojsonPath, _ := cmd.Flags().GetString("geojson")
		if geojsonPath == "" {
			geojsonPath = cfg.Export.GeoJSON
		}
		shapefilePath, _ := cmd.Flags().GetString("shapefile")
		if shapefilePath == "" {
			shapefilePath = cfg.Export.Shapefile
		}
		if geojsonPath == "" && shapefilePath == "" {
			return eris.New("nothing to export: set --geojson and/or --shapefile")
		}

		records, err := dataset.Load(input)
		if err != nil {
			return err
		}

		if err := export.WriteAll(cmd.Context(), records, geojsonPath, shapefilePath); err != nil {
			return err
		}
		zap.L().Info("export written",
			zap.String("input", input),
			zap.String("geojson", geojsonPath),
			zap.String("shapefile", shapefilePath),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("geojson", "", "GeoJSON output path")
	exportCmd.Flags().String("shapefile", "", "shapefile output path")
	rootCmd.AddCommand(exportCmd)
}
