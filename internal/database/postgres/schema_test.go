package postgres

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) == 0 || migrations[0].version != "001_employees.sql" {
		t.Fatalf("unexpected migrations %v", migrations)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].version >= migrations[i].version {
			t.Errorf("migrations out of order: %s before %s", migrations[i-1].version, migrations[i].version)
		}
	}
	if !strings.Contains(migrations[0].sql, "descriptor  vector(128)") {
		t.Error("first migration should declare the 128-value descriptor column")
	}
}

func TestCheckDescriptorDim(t *testing.T) {
	tests := []struct {
		name    string
		column  int
		want    int
		wantErr bool
	}{
		{"matching", 128, 128, false},
		{"unconstrained column", -1, 512, false},
		{"larger configured", 128, 512, true},
		{"smaller configured", 512, 128, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDescriptorDim(tt.column, tt.want)
			if tt.wantErr != (err != nil) {
				t.Fatalf("checkDescriptorDim(%d, %d) error = %v, wantErr %v", tt.column, tt.want, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrDescriptorDim) {
				t.Errorf("expected ErrDescriptorDim, got %v", err)
			}
		})
	}
}
