// Package dataset loads bibliographic records from TSV, CSV and XLSX
// files and writes enriched output back to TSV.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/internal/enrich"
)

// aliasSeparator joins alias titles into one cell and splits them back.
const aliasSeparator = "; "

// Row mirrors the tabular layout of the dataset. Pointer fields encode to
// an empty cell when absent; an empty input cell decodes to nil, keeping
// "never looked up" distinguishable from "looked up, empty".
type Row struct {
	Author           string `csv:"Author"`
	Title            string `csv:"Book Title"`
	AltTitle         string `csv:"Original/Alt Title"`
	WorkWikidataID   string `csv:"Work Wikidata ID"`
	AuthorWikidataID string `csv:"Author Wikidata ID"`

	AreaCode        *string  `csv:"GND Area Code"`
	AreaLabel       *string  `csv:"GND Area Label"`
	CountryOfOrigin *string  `csv:"Country of Origin"`
	BirthPlace      *string  `csv:"Birth Place"`
	MappedGeoNames  *string  `csv:"Geonames ID"`
	Latitude        *float64 `csv:"Latitude"`
	Longitude       *float64 `csv:"Longitude"`

	GermanTitle *string `csv:"German Title"`
	Aliases     *string `csv:"Aliases"`
	MappedCode  *string `csv:"GND Mapping"`
	Note        *string `csv:"Note"`
}

// slimRow is the default output layout; the working columns of Row are
// dropped.
type slimRow struct {
	Author           string `csv:"Author"`
	Title            string `csv:"Book Title"`
	AltTitle         string `csv:"Original/Alt Title"`
	WorkWikidataID   string `csv:"Work Wikidata ID"`
	AuthorWikidataID string `csv:"Author Wikidata ID"`

	AreaCode        *string  `csv:"GND Area Code"`
	AreaLabel       *string  `csv:"GND Area Label"`
	CountryOfOrigin *string  `csv:"Country of Origin"`
	BirthPlace      *string  `csv:"Birth Place"`
	MappedGeoNames  *string  `csv:"Geonames ID"`
	Latitude        *float64 `csv:"Latitude"`
	Longitude       *float64 `csv:"Longitude"`
}

// Record converts a row into its pipeline form.
func (r Row) Record() *enrich.Record {
	rec := &enrich.Record{
		Author:           strings.TrimSpace(r.Author),
		Title:            strings.TrimSpace(r.Title),
		AltTitle:         strings.TrimSpace(r.AltTitle),
		WorkWikidataID:   strings.TrimSpace(r.WorkWikidataID),
		AuthorWikidataID: strings.TrimSpace(r.AuthorWikidataID),
		AreaCode:         r.AreaCode,
		AreaLabel:        r.AreaLabel,
		CountryOfOrigin:  r.CountryOfOrigin,
		BirthPlace:       r.BirthPlace,
		MappedGeoNames:   r.MappedGeoNames,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		GermanTitle:      r.GermanTitle,
		MappedCode:       r.MappedCode,
		Note:             r.Note,
	}
	if r.Aliases != nil {
		rec.Aliases = strings.Split(*r.Aliases, aliasSeparator)
	}
	return rec
}

// FromRecord converts a pipeline record back into its tabular form.
func FromRecord(rec *enrich.Record) Row {
	row := Row{
		Author:           rec.Author,
		Title:            rec.Title,
		AltTitle:         rec.AltTitle,
		WorkWikidataID:   rec.WorkWikidataID,
		AuthorWikidataID: rec.AuthorWikidataID,
		AreaCode:         rec.AreaCode,
		AreaLabel:        rec.AreaLabel,
		CountryOfOrigin:  rec.CountryOfOrigin,
		BirthPlace:       rec.BirthPlace,
		MappedGeoNames:   rec.MappedGeoNames,
		Latitude:         rec.Latitude,
		Longitude:        rec.Longitude,
		GermanTitle:      rec.GermanTitle,
		MappedCode:       rec.MappedCode,
		Note:             rec.Note,
	}
	if rec.Aliases != nil {
		joined := strings.Join(rec.Aliases, aliasSeparator)
		row.Aliases = &joined
	}
	return row
}

// Load reads records from a file, dispatching on the extension: .tsv,
// .csv or .xlsx.
func Load(path string) ([]*enrich.Record, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tsv", ".tab":
		return loadDelimited(path, '\t')
	case ".csv":
		return loadDelimited(path, ',')
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, eris.Errorf("dataset: unsupported file type %q", ext)
	}
}

func loadDelimited(path string, comma rune) ([]*enrich.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open input")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.LazyQuotes = true

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header")
	}
	return decodeRows(dec, path)
}

// loadXLSX reads the first sheet and feeds its rows through the same
// decoder as the delimited formats.
func loadXLSX(path string) ([]*enrich.Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("dataset: workbook %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	dec, err := csvutil.NewDecoder(&sliceReader{rows: rows})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header")
	}
	return decodeRows(dec, path)
}

func decodeRows(dec *csvutil.Decoder, path string) ([]*enrich.Record, error) {
	var records []*enrich.Record
	for {
		var row Row
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "dataset: decode row %d", len(records)+1)
		}
		records = append(records, row.Record())
	}

	zap.L().Info("dataset loaded",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// sliceReader adapts in-memory rows to the decoder's reader interface.
type sliceReader struct {
	rows [][]string
	next int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.next]
	r.next++
	return row, nil
}

// Save writes enriched records as TSV. Debug mode keeps the working
// columns (German title, aliases, mapping, note); the default layout
// drops them.
func Save(path string, records []*enrich.Record, debug bool) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "dataset: create output")
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	writer.Comma = '\t'
	enc := csvutil.NewEncoder(writer)

	for _, rec := range records {
		row := FromRecord(rec)
		var encodeErr error
		if debug {
			encodeErr = enc.Encode(row)
		} else {
			encodeErr = enc.Encode(slim(row))
		}
		if encodeErr != nil {
			return eris.Wrapf(encodeErr, "dataset: encode row for %q", rec.Title)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return eris.Wrap(err, "dataset: flush output")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "dataset: close output")
	}

	zap.L().Info("dataset written",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Bool("debug_columns", debug),
	)
	return nil
}

func slim(row Row) slimRow {
	return slimRow{
		Author:           row.Author,
		Title:            row.Title,
		AltTitle:         row.AltTitle,
		WorkWikidataID:   row.WorkWikidataID,
		AuthorWikidataID: row.AuthorWikidataID,
		AreaCode:         row.AreaCode,
		AreaLabel:        row.AreaLabel,
		CountryOfOrigin:  row.CountryOfOrigin,
		BirthPlace:       row.BirthPlace,
		MappedGeoNames:   row.MappedGeoNames,
		Latitude:         row.Latitude,
		Longitude:        row.Longitude,
	}
}
