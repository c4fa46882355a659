// Package forcedprice implements the forced-price marker-file interface
// (spec §6 "Forced-price interface"): an external collaborator drops files
// named `_balancer_force_<price>*` into a watched directory, and the
// pricing engine treats the resulting sorted price list as explicit
// override levels (spec §4.D "Forced-price override").
//
// The core only consumes the resulting list; creating, naming, or removing
// the marker files is the external collaborator's job (spec §1, "external
// forced price file-name probing" is out of scope for the core).
package forcedprice

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Config selects the watched directory and file-name glob pattern
// (spec §6 configuration: forced_price_dir / forced_price_pattern).
type Config struct {
	Dir     string
	Pattern string
}

// Load scans Dir for files matching Pattern and returns the sorted list of
// prices parsed from the third underscore-separated field of each matching
// name, e.g. "_balancer_force_540" -> 540. Unparseable names are skipped
// rather than failing the whole scan, since a malformed marker file should
// not stop trading.
func Load(cfg Config) ([]float64, error) {
	if cfg.Dir == "" {
		return nil, nil
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "_balancer_force_*"
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Dir, pattern))
	if err != nil {
		return nil, err
	}

	var prices []float64
	for _, m := range matches {
		if p, ok := parsePrice(filepath.Base(m)); ok {
			prices = append(prices, p)
		}
	}
	sort.Float64s(prices)
	return prices, nil
}

// parsePrice extracts the price from the third underscore-separated field
// of a marker file name, e.g. "_balancer_force_540_extra" -> 540.
func parsePrice(name string) (float64, bool) {
	fields := strings.Split(name, "_")
	// "_balancer_force_540" splits to ["", "balancer", "force", "540"].
	if len(fields) < 4 {
		return 0, false
	}
	p, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}
