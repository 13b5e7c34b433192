package artifact

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// BuildFromCSV imports a directory of table files into an artifact
// database. Each <key>.csv holds one table with columns sex, age_start,
// age_end, year_start, year_end, value, plus optional parameter and draw
// columns. An optional meta.yaml supplies metadata entries, including the
// population age bins. Returns the number of tables imported.
func BuildFromCSV(ctx context.Context, dir, dbPath string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading artifact source dir: %w", err)
	}
	store, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	tables := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		key := strings.TrimSuffix(name, ".csv")
		byDraw, err := readTableCSV(filepath.Join(dir, name))
		if err != nil {
			return tables, fmt.Errorf("%s: %w", name, err)
		}
		for draw, rows := range byDraw {
			if err := store.WriteRows(ctx, key, draw, rows); err != nil {
				return tables, err
			}
		}
		logrus.Infof("imported artifact table %s (%d draws)", key, len(byDraw))
		tables++
	}

	metaPath := filepath.Join(dir, "meta.yaml")
	if data, err := os.ReadFile(metaPath); err == nil {
		var meta map[string]interface{}
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return tables, fmt.Errorf("meta.yaml: %w", err)
		}
		for key, value := range meta {
			if err := store.WriteMeta(ctx, key, value); err != nil {
				return tables, err
			}
		}
		logrus.Infof("imported %d artifact metadata entries", len(meta))
	} else if !os.IsNotExist(err) {
		return tables, fmt.Errorf("meta.yaml: %w", err)
	}

	if tables == 0 {
		return 0, fmt.Errorf("no .csv tables found in %s", dir)
	}
	return tables, nil
}

func readTableCSV(path string) (map[int][]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("table needs a header and at least one row")
	}

	col := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"sex", "age_start", "age_end", "year_start", "year_end", "value"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	byDraw := make(map[int][]Row)
	for ln, rec := range records[1:] {
		row := Row{Sex: strings.TrimSpace(rec[col["sex"]])}
		var err error
		if row.AgeStart, err = strconv.ParseFloat(rec[col["age_start"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: age_start: %w", ln+2, err)
		}
		if row.AgeEnd, err = strconv.ParseFloat(rec[col["age_end"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: age_end: %w", ln+2, err)
		}
		if row.YearStart, err = strconv.Atoi(rec[col["year_start"]]); err != nil {
			return nil, fmt.Errorf("row %d: year_start: %w", ln+2, err)
		}
		if row.YearEnd, err = strconv.Atoi(rec[col["year_end"]]); err != nil {
			return nil, fmt.Errorf("row %d: year_end: %w", ln+2, err)
		}
		if row.Value, err = strconv.ParseFloat(rec[col["value"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: value: %w", ln+2, err)
		}
		if idx, ok := col["parameter"]; ok {
			row.Parameter = strings.TrimSpace(rec[idx])
		}
		draw := 0
		if idx, ok := col["draw"]; ok && strings.TrimSpace(rec[idx]) != "" {
			if draw, err = strconv.Atoi(rec[idx]); err != nil {
				return nil, fmt.Errorf("row %d: draw: %w", ln+2, err)
			}
		}
		byDraw[draw] = append(byDraw[draw], row)
	}
	return byDraw, nil
}
