// Package data_loader ingests OHLCV files into a series handle. DuckDB
// does the heavy lifting: read_parquet and read_csv_auto handle both
// formats with NULL filtering and ordering pushed into the query.
package data_loader

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"candlelab/go_src/chart_exceptions"
	"candlelab/go_src/schema"
	"candlelab/go_src/series_store"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"github.com/sirupsen/logrus"
)

// Timestamps below this are assumed to be epoch seconds rather than
// milliseconds. The cutoff is ~2001-09 in ms and ~33658 in s, so no
// plausible market data falls on the wrong side.
const epochMsCutoff = 1e12

const queryTemplate = `
SELECT "timestamp", open, high, low, close, COALESCE(volume, 0) AS volume
FROM %s('%s')
WHERE "timestamp" IS NOT NULL
  AND open IS NOT NULL AND high IS NOT NULL
  AND low IS NOT NULL AND close IS NOT NULL
ORDER BY "timestamp"`

// LoadSeries reads the OHLCV file at path and returns a populated series
// handle. Supported formats are parquet and CSV, chosen by extension.
// Rows with NULL price fields are dropped, matching the cleaning the
// chart expects.
func LoadSeries(ctx context.Context, path string) (*series_store.SeriesHandle, error) {
	reader, err := readerFunction(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory DuckDB for loading: %w", err)
	}
	defer db.Close()

	// read_parquet/read_csv_auto take the path as a literal, not a bind
	// parameter; escape embedded quotes.
	query := fmt.Sprintf(queryTemplate, reader, strings.ReplaceAll(path, "'", "''"))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, chart_exceptions.NewDataError(path, "failed to read file: %v", err)
	}
	defer rows.Close()

	var bars []schema.Bar
	rowNum := int64(0)
	for rows.Next() {
		rowNum++
		var rawTs any
		var bar schema.Bar
		if err := rows.Scan(&rawTs, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			de := chart_exceptions.NewDataError(path, "failed to scan row: %v", err)
			de.Row = rowNum
			return nil, de
		}
		ts, err := normalizeTimestamp(rawTs)
		if err != nil {
			de := chart_exceptions.NewDataError(path, "%v", err)
			de.Row = rowNum
			return nil, de
		}
		bar.Timestamp = ts
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, chart_exceptions.NewDataError(path, "failed while reading rows: %v", err)
	}
	if len(bars) == 0 {
		return nil, chart_exceptions.NewDataError(path, "file contains no usable rows")
	}

	logrus.Infof("Loaded %d bars from %s", len(bars), path)
	return series_store.Load(bars)
}

func readerFunction(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "read_parquet", nil
	case ".csv":
		return "read_csv_auto", nil
	default:
		return "", chart_exceptions.NewDataError(path, "unsupported file extension %q (want .parquet or .csv)", filepath.Ext(path))
	}
}

// normalizeTimestamp converts whatever the file stored the timestamp as
// into epoch milliseconds.
func normalizeTimestamp(raw any) (int64, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UnixMilli(), nil
	case int64:
		if float64(v) < epochMsCutoff {
			return v * 1000, nil
		}
		return v, nil
	case int32:
		return int64(v) * 1000, nil
	case float64:
		if v < epochMsCutoff {
			return int64(v * 1000), nil
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

// WindowTitle derives the chart window title from a data file path.
func WindowTitle(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "candlelab"
	}
	return "candlelab - " + name
}
