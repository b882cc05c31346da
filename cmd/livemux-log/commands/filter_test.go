package commands

import (
	"path/filepath"
	"testing"

	"github.com/sitetrack/livemux/pkg/log"
)

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	tests := []struct {
		name string
		opts FilterOptions
		want int
	}{
		{"resource", FilterOptions{ResourceKey: "projects"}, 5},
		{"owner", FilterOptions{OwnerID: "ops"}, 4},
		{"category", FilterOptions{Category: "error"}, 1},
		{"layer", FilterOptions{Layer: "subscriber"}, 1},
		{"time window", FilterOptions{TimeStart: "2026-01-28T10:15:33Z"}, 1},
		{"before", FilterOptions{TimeEnd: "2026-01-28T10:15:33Z"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Output = filepath.Join(t.TempDir(), "filtered.lmlog")
			n, err := RunFilter(path, tt.opts)
			if err != nil {
				t.Fatalf("RunFilter failed: %v", err)
			}
			if n != tt.want {
				t.Errorf("wrote %d events, want %d", n, tt.want)
			}

			reader, err := log.NewReader(tt.opts.Output)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}
			defer reader.Close()
			stats, err := collectStats(reader)
			if err != nil {
				t.Fatalf("collectStats failed: %v", err)
			}
			if stats.TotalEvents != tt.want {
				t.Errorf("output has %d events, want %d", stats.TotalEvents, tt.want)
			}
		})
	}
}

func TestRunFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.lmlog")

	for _, opts := range []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "tomorrow"},
		{Output: out, Layer: "wire"},
		{Output: out, Category: "message"},
	} {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
