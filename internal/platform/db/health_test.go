package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestNewReport(t *testing.T) {
	conns := ConnStats{Total: 4, Idle: 3, InUse: 1, Max: 20, Acquires: 12, AcquireWait: "1.5ms"}

	tests := []struct {
		name    string
		version int
		err     error
		status  string
		healthy bool
	}{
		{"migrated", 2, nil, "ok", true},
		{"no migrations", 0, nil, "unmigrated", false},
		{"ping failed", 0, errors.New("ping: connection refused"), "unavailable", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReport("lab", conns, tt.version, tt.err)
			if r.Status != tt.status {
				t.Errorf("expected status %q, got %q", tt.status, r.Status)
			}
			if r.Healthy() != tt.healthy {
				t.Errorf("expected healthy=%v", tt.healthy)
			}
			if (tt.err != nil) != (r.Error != "") {
				t.Errorf("unexpected error field %q", r.Error)
			}
		})
	}
}

func TestReport_JSON(t *testing.T) {
	r := newReport("public", ConnStats{Total: 1, Max: 5, AcquireWait: "0s"}, 2, nil)
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"status", "schema", "schema_version", "conns"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in JSON output", key)
		}
	}
	if _, ok := m["error"]; ok {
		t.Error("error must be omitted when the check passed")
	}
	conns := m["conns"].(map[string]interface{})
	if conns["max"] != float64(5) {
		t.Errorf("expected max=5, got %v", conns["max"])
	}
}

func TestIsUndefinedTable(t *testing.T) {
	if !isUndefinedTable(fmt.Errorf("query: %w", &pgconn.PgError{Code: "42P01"})) {
		t.Error("expected wrapped 42P01 to be recognised")
	}
	if isUndefinedTable(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation is not an undefined table")
	}
	if isUndefinedTable(errors.New("boom")) {
		t.Error("plain errors are not undefined tables")
	}
}
