package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sitetrack/livemux/pkg/log"
)

func TestFormatStateChangeEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[projects]",
		"MULTIPLEXER State",
		"Channel: projects:ops:1769595332123",
		"IDLE -> CONNECTING",
		"Reason: subscribe",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatEventDetails(t *testing.T) {
	events := sampleEvents()
	tests := []struct {
		name  string
		event log.Event
		want  []string
	}{
		{"error", events[1], []string{"TRANSPORT Error", "Message: connection failed: refused", "Context: connect"}},
		{"retry", events[2], []string{"Retry", "Attempt: 1/5", "Delay: 100.000ms"}},
		{"delivery", events[3], []string{"Delivery", "Type: UPDATE", "Payload: 12 bytes", "Delivered: 2", "Failed: 1"}},
		{"callback", events[4], []string{"SUBSCRIBER Callback", "Token: tok-1", "boom"}},
		{"reclaim", events[5], []string{"Reclaim", "Reason: IDLE", "Age: 3.000s"}},
		{"unknown", log.Event{Timestamp: baseTime, ResourceKey: "x"}, []string{"Unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected %q in output, got: %s", want, buf.String())
				}
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{1500 * time.Microsecond, "1.500ms"},
		{2500 * time.Millisecond, "2.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	l, err := ParseLayerFlag("multiplexer")
	if err != nil || l != log.LayerMultiplexer {
		t.Errorf("ParseLayerFlag(multiplexer) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}

	c, err := ParseCategoryFlag("Retry")
	if err != nil || c != log.CategoryRetry {
		t.Errorf("ParseCategoryFlag(Retry) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("message"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	retry := log.CategoryRetry
	transport := log.LayerTransport
	tests := []struct {
		name   string
		filter ViewFilter
		count  int
	}{
		{"all", ViewFilter{}, 6},
		{"category", ViewFilter{Category: &retry}, 1},
		{"layer", ViewFilter{Layer: &transport}, 1},
		{"resource", ViewFilter{ResourceKey: "tasks"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RunView(path, tt.filter, &buf); err != nil {
				t.Fatalf("RunView failed: %v", err)
			}
			if got := strings.Count(buf.String(), "2026-01-28T"); got != tt.count {
				t.Errorf("got %d events, want %d:\n%s", got, tt.count, buf.String())
			}
		})
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView("/nonexistent/file.lmlog", ViewFilter{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}
