package e2cnn

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Statistics accumulates equivariance drift across repeated checks, one
// series per group element, for tracking how the residual error evolves
// while a model trains.
type Statistics struct {
	Elements []string
	MaxDiffs map[string][]float32
}

func MakeStatistics() Statistics {
	return Statistics{
		Elements: make([]string, 0, 8),
		MaxDiffs: make(map[string][]float32),
	}
}

// Update records one round of equivariance reports.
func (s *Statistics) Update(reports []EquivarianceReport) {
	for _, r := range reports {
		name := fmt.Sprintf("g%d", int(r.Element))
		if _, ok := s.MaxDiffs[name]; !ok {
			s.Elements = append(s.Elements, name)
		}
		s.MaxDiffs[name] = append(s.MaxDiffs[name], r.MaxDiff)
	}
}

// Dump writes the recorded series as CSV, one column per element.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(s.Elements); err != nil {
		return err
	}

	var rows int
	for _, series := range s.MaxDiffs {
		if len(series) > rows {
			rows = len(series)
		}
	}
	records := make([][]string, rows)
	for i := range records {
		record := make([]string, len(s.Elements))
		for j, name := range s.Elements {
			if series := s.MaxDiffs[name]; i < len(series) {
				record[j] = strconv.FormatFloat(float64(series[i]), 'e', 3, 32)
			}
		}
		records[i] = record
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
