package facematch

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDescriptor_IndexMap(t *testing.T) {
	// Keys deliberately out of order; values must land at their index.
	raw := `{"2": 0.3, "0": 0.1, "1": 0.2}`
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}

	d, err := ParseDescriptor(m, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := Descriptor{0.1, 0.2, 0.3}
	for i := range expected {
		if d[i] != expected[i] {
			t.Errorf("d[%d] = %v, want %v", i, d[i], expected[i])
		}
	}
}

func TestParseDescriptor_Inputs(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		dim     int
		wantErr bool
	}{
		{"float32 slice", []float32{1, 2}, 2, false},
		{"float64 slice", []float64{1, 2}, 2, false},
		{"any slice", []any{1.0, json.Number("2")}, 2, false},
		{"float64 map", map[string]float64{"0": 1, "1": 2}, 2, false},
		{"wrong length", []float32{1, 2, 3}, 2, true},
		{"sparse map", map[string]any{"0": 1.0, "2": 2.0}, 2, true},
		{"non-numeric key", map[string]any{"a": 1.0, "1": 2.0}, 2, true},
		{"non-numeric value", []any{1.0, true}, 2, true},
		{"unsupported type", "0.1,0.2", 2, true},
		{"empty", []float32{}, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptor(tt.input, tt.dim)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDescriptor error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDescriptor_Nil(t *testing.T) {
	if _, err := ParseDescriptor(nil, 128); !errors.Is(err, ErrAbsentDescriptor) {
		t.Errorf("expected ErrAbsentDescriptor, got %v", err)
	}
}

func TestDescriptor_IndexMapRoundTrip(t *testing.T) {
	d := Descriptor{0.5, -0.25}

	m := d.IndexMap()
	if m["0"] != 0.5 || m["1"] != -0.25 {
		t.Errorf("unexpected index map %v", m)
	}

	back := make(map[string]float64, len(m))
	for k, v := range m {
		back[k] = float64(v)
	}
	parsed, err := ParseDescriptor(back, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Distance(parsed, d) != 0 {
		t.Errorf("round trip changed descriptor: %v", parsed)
	}
}
