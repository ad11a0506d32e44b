package e2cnn

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntheticDatasetDeterminism(t *testing.T) {
	assert := assert.New(t)

	a := NewSyntheticDataset(21, 1337)
	b := NewSyntheticDataset(21, 1337)
	for i := 0; i < 3; i++ {
		imgA, labelA, errA := a.Next()
		imgB, labelB, errB := b.Next()
		if errA != nil || errB != nil {
			t.Fatalf("%v %v", errA, errB)
		}
		assert.Equal(labelA, labelB)
		assert.Equal(imgA.Data().([]float32), imgB.Data().([]float32))
	}
}

func TestSyntheticDatasetRotated(t *testing.T) {
	ds := NewSyntheticDataset(21, 5)

	// a quarter turn is an exact grid permutation, so the analytically
	// rotated sample and the resampled one must agree to float rounding
	base := ds.Rotated(3, 0, 99)
	analytic := ds.Rotated(3, math.Pi/2, 99)
	resampled := RotateImage(base, math.Pi/2)

	av := analytic.Data().([]float32)
	rv := resampled.Data().([]float32)
	for i := range av {
		if d := av[i] - rv[i]; d > 1e-5 || d < -1e-5 {
			t.Fatalf("pixel %d: analytic %v vs resampled %v", i, av[i], rv[i])
		}
	}
}

func TestStatistics(t *testing.T) {
	assert := assert.New(t)

	stats := MakeStatistics()
	reports := []EquivarianceReport{
		{Element: 0, AngleDeg: 0, MaxDiff: 0},
		{Element: 2, AngleDeg: 90, MaxDiff: 3.2e-6},
		{Element: 4, AngleDeg: 180, MaxDiff: 1.1e-6},
	}
	stats.Update(reports)
	stats.Update(reports)

	assert.Equal([]string{"g0", "g2", "g4"}, stats.Elements)
	assert.Len(stats.MaxDiffs["g2"], 2)

	fname := filepath.Join(t.TempDir(), "drift.csv")
	if err := stats.Dump(fname); err != nil {
		t.Fatalf("%+v", err)
	}
	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(lines, 3) // header + two rounds
	assert.Equal("g0,g2,g4", lines[0])
}

func TestFormatReports(t *testing.T) {
	assert := assert.New(t)
	out := FormatReports([]EquivarianceReport{
		{Element: 0, AngleDeg: 0, MaxDiff: 0},
		{Element: 1, AngleDeg: 45, MaxDiff: 0.012},
	})
	assert.Contains(out, "g0")
	assert.Contains(out, "45")
}
