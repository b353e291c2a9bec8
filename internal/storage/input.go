package storage

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadVectors reads a plain-text array file with one "x y z" row per atom.
// Blank lines and lines starting with '#' are skipped.
func ReadVectors(path string) ([][3]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out [][3]float64
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("storage: %s:%d: want 3 columns, got %d", path, line, len(fields))
		}
		var v [3]float64
		for k, s := range fields {
			if v[k], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("storage: %s:%d: %w", path, line, err)
			}
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteVectors writes the inverse of ReadVectors, for tests and tooling.
func WriteVectors(path string, rows [][3]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%.10g %.10g %.10g\n", r[0], r[1], r[2]); err != nil {
			return err
		}
	}
	return nil
}
