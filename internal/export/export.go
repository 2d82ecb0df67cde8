// Package export writes resolved record locations as GeoJSON and ESRI
// shapefile.
package export

import (
	"context"
	"encoding/json"
	"os"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temporal-communities/geolit/internal/enrich"
)

// WriteGeoJSON writes all located records as a FeatureCollection of
// points. Records without coordinates are skipped.
func WriteGeoJSON(path string, records []*enrich.Record) error {
	fc := &geojson.FeatureCollection{}
	for _, rec := range records {
		if !rec.Located() {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*rec.Longitude, *rec.Latitude}).SetSRID(4326),
			Properties: featureProperties(rec),
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "export: marshal feature collection")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}

	zap.L().Info("geojson written",
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
	)
	return nil
}

func featureProperties(rec *enrich.Record) map[string]any {
	props := map[string]any{
		"author": rec.Author,
		"title":  rec.Title,
	}
	if rec.AreaCode != nil {
		props["area_code"] = *rec.AreaCode
	}
	if rec.AreaLabel != nil {
		props["area_label"] = *rec.AreaLabel
	}
	if rec.MappedGeoNames != nil {
		props["geonames_id"] = *rec.MappedGeoNames
	}
	if rec.ResolvedBy != "" {
		props["resolved_by"] = string(rec.ResolvedBy)
	}
	return props
}

// shapefile attribute layout; DBF strings are fixed width.
var shapeFields = []shp.Field{
	shp.StringField("AUTHOR", 80),
	shp.StringField("TITLE", 120),
	shp.StringField("AREACODE", 120),
	shp.StringField("AREALABEL", 80),
	shp.StringField("GEONAMES", 16),
	shp.StringField("STAGE", 32),
}

// WriteShapefile writes all located records as a point shapefile.
func WriteShapefile(path string, records []*enrich.Record) error {
	writer, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer writer.Close()

	if err := writer.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	var written int
	for _, rec := range records {
		if !rec.Located() {
			continue
		}
		row := int(writer.Write(&shp.Point{X: *rec.Longitude, Y: *rec.Latitude}))

		attrs := []string{
			rec.Author,
			rec.Title,
			deref(rec.AreaCode),
			deref(rec.AreaLabel),
			deref(rec.MappedGeoNames),
			string(rec.ResolvedBy),
		}
		for i, val := range attrs {
			if err := writer.WriteAttribute(row, i, val); err != nil {
				return eris.Wrapf(err, "export: write attribute %s for %q", shapeFields[i].String(), rec.Title)
			}
		}
		written++
	}

	zap.L().Info("shapefile written",
		zap.String("path", path),
		zap.Int("points", written),
	)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WriteAll fans the per-format writers out in parallel; the formats write
// to separate files and share nothing.
func WriteAll(ctx context.Context, records []*enrich.Record, geojsonPath, shapefilePath string) error {
	g, _ := errgroup.WithContext(ctx)

	if geojsonPath != "" {
		g.Go(func() error { return WriteGeoJSON(geojsonPath, records) })
	}
	if shapefilePath != "" {
		g.Go(func() error { return WriteShapefile(shapefilePath, records) })
	}
	return g.Wait()
}
