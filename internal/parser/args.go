package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseIntFromFloat parses a string that may be an integer ("3") or a whole
// float ("3.00") into int64. Editor hosts serialise every number as a float.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// ArgString returns argument i with surrounding quotes removed.
func ArgString(args []string, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	return strings.Trim(strings.TrimSpace(args[i]), `"`), nil
}

// ArgInt returns argument i as an int.
func ArgInt(args []string, i int) (int, error) {
	s, err := ArgString(args, i)
	if err != nil {
		return 0, err
	}
	v, err := parseIntFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return int(v), nil
}

// ArgFloat returns argument i as a finite float.
func ArgFloat(args []string, i int) (float64, error) {
	s, err := ArgString(args, i)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("argument %d: %q is not finite", i, s)
	}
	return f, nil
}

// OptString returns argument i, or def when it is absent or empty.
func OptString(args []string, i int, def string) string {
	s, err := ArgString(args, i)
	if err != nil || s == "" {
		return def
	}
	return s
}
