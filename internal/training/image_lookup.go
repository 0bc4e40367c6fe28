package training

import (
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/stitts-dev/f1-velocity/internal/dataset"
)

// ImageLookup is a rating lookup extended with an image URL column
type ImageLookup struct {
	Source Lookup
	File   string
	URLCol string
}

var (
	DriverImageLookup = ImageLookup{Source: DriverLookup, File: "driver_image_lookup.csv", URLCol: "image_url"}
	TeamImageLookup   = ImageLookup{Source: TeamLookup, File: "team_image_lookup.csv", URLCol: "logo_url"}
)

// ImageLookupRow is a lookup row with its image URL, empty when none was found
type ImageLookupRow struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	URL   string  `json:"url,omitempty"`
}

// WriteImageLookup persists rows atomically
func WriteImageLookup(dir string, l ImageLookup, rows []ImageLookupRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("%s: %w", l.File, ErrEmptyLookup)
	}
	names := make([]string, len(rows))
	values := make([]float64, len(rows))
	urls := make([]string, len(rows))
	for i, r := range rows {
		names[i], values[i], urls[i] = r.Name, r.Value, r.URL
	}

	df := dataframe.New(
		series.New(names, series.String, l.Source.NameCol),
		series.New(formatValues(values), series.String, l.Source.ValueCol),
		series.New(urls, series.String, l.URLCol),
	)
	if df.Err != nil {
		return fmt.Errorf("build %s: %w", l.File, df.Err)
	}
	return writeFileAtomic(filepath.Join(dir, l.File), func(w io.Writer) error {
		return df.WriteCSV(w)
	})
}

// ReadImageLookup loads an image lookup written by WriteImageLookup
func ReadImageLookup(dir string, l ImageLookup) ([]ImageLookupRow, error) {
	df, err := dataset.LoadFile(filepath.Join(dir, l.File), dataset.TableSpec{
		File:    l.File,
		Columns: []string{l.Source.NameCol, l.Source.ValueCol, l.URLCol},
		Types:   map[string]series.Type{l.Source.ValueCol: series.Float},
	})
	if err != nil {
		return nil, err
	}

	names := dataset.Strings(df, l.Source.NameCol)
	values := df.Col(l.Source.ValueCol).Float()
	urls := dataset.Strings(df, l.URLCol)
	rows := make([]ImageLookupRow, 0, len(names))
	for i, name := range names {
		if name == "" || math.IsNaN(values[i]) {
			continue
		}
		rows = append(rows, ImageLookupRow{Name: name, Value: values[i], URL: urls[i]})
	}
	return rows, nil
}
