package geo

import (
	"math"
	"testing"
)

func FuzzParsePoint(f *testing.F) {
	seeds := []string{
		"34.111745,-118.113491",
		"abc,45",
		"-40,45",
		"",
		"90,180",
		"1e10,0",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		p, err := ParsePoint(raw)
		if err != nil {
			return
		}
		if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
			t.Fatalf("accepted out-of-range latitude %v from %q", p.Lat, raw)
		}
		if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
			t.Fatalf("accepted out-of-range longitude %v from %q", p.Lng, raw)
		}
	})
}
