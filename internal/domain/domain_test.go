package domain

import (
	"testing"
	"time"
)

func TestRunResultDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &RunResult{StartTime: start}

	if _, ok := r.Duration(); ok {
		t.Fatal("duration must be undefined before Finish")
	}

	r.Finish(start.Add(1500 * time.Millisecond))

	d, ok := r.Duration()
	if !ok || d != 1500*time.Millisecond {
		t.Fatalf("Duration() = %v, %v", d, ok)
	}
	if r.DurationSeconds == nil || *r.DurationSeconds != 1.5 {
		t.Fatalf("DurationSeconds = %v", r.DurationSeconds)
	}
}

func TestCheckpointLastIndex(t *testing.T) {
	tests := []struct {
		name   string
		cp     *Checkpoint
		want   int
		wantOK bool
	}{
		{name: "nil", cp: nil},
		{name: "no marker", cp: &Checkpoint{}},
		{name: "int", cp: &Checkpoint{Marker: JSONMap{MarkerLastIndex: 50}}, want: 50, wantOK: true},
		{name: "decoded json", cp: &Checkpoint{Marker: JSONMap{MarkerLastIndex: float64(100)}}, want: 100, wantOK: true},
		{name: "wrong type", cp: &Checkpoint{Marker: JSONMap{MarkerLastIndex: "7"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.cp.LastIndex()
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("LastIndex() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	if err := m.Scan([]byte(`{"symbol":"BTC","rank":1}`)); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if m["symbol"] != "BTC" || m["rank"] != float64(1) {
		t.Fatalf("unexpected map %v", m)
	}

	if err := m.Scan(42); err == nil {
		t.Fatal("expected error for unsupported column type")
	}

	var a StringArray
	if err := a.Scan(nil); err != nil || len(a) != 0 {
		t.Fatalf("Scan(nil) = %v, %v", a, err)
	}
}
