// Package similarity scores how alike two patch vectors are.
package similarity

import (
	"fmt"
	"strings"
)

// Metric selects the patch similarity measure.
type Metric uint8

const (
	// PearsonCorrelation scores patches in [-1, 1]; higher is more similar.
	PearsonCorrelation Metric = iota
	// MeanSquares scores patches in [0, inf); lower is more similar.
	MeanSquares
)

func (m Metric) String() string {
	switch m {
	case PearsonCorrelation:
		return "pearson"
	case MeanSquares:
		return "meansquares"
	default:
		return fmt.Sprintf("Metric(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the known metrics.
func (m Metric) Valid() bool {
	switch m {
	case PearsonCorrelation, MeanSquares:
		return true
	default:
		return false
	}
}

// ParseMetric accepts the names used in configuration files and on the
// command line.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pearson", "pearson_correlation", "correlation":
		return PearsonCorrelation, nil
	case "meansquares", "mean_squares", "mse", "":
		return MeanSquares, nil
	default:
		return 0, fmt.Errorf("unknown similarity metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown similarity metric %d", uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
