package table

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTable_AppendPreservesOrder(t *testing.T) {
	tbl := New([]string{"nct_id", "brief_title"})

	tbl.Append(Row{"nct_id": "NCT001", "brief_title": "First"})
	tbl.Append(Row{"nct_id": "NCT002", "brief_title": "Second"})
	tbl.Append(Row{"nct_id": "NCT003", "brief_title": "Third"})

	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}

	expected := []string{"NCT001", "NCT002", "NCT003"}
	for i, want := range expected {
		if got := tbl.Row(i)["nct_id"]; got != want {
			t.Errorf("Row(%d) nct_id = %v, want %q", i, got, want)
		}
	}
}

func TestTable_Columns(t *testing.T) {
	columns := []string{"a", "b", "c"}
	tbl := New(columns)

	got := tbl.Columns()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Columns() = %v, want %v", got, columns)
	}

	// The returned slice is a copy.
	got[0] = "mutated"
	if tbl.Columns()[0] != "a" {
		t.Error("Mutating the returned slice must not affect the table")
	}
}

func TestTable_Column(t *testing.T) {
	tbl := New([]string{"nct_id", "sponsor"})
	tbl.Append(Row{"nct_id": "NCT001", "sponsor": "Acme"})
	tbl.Append(Row{"nct_id": "NCT002", "sponsor": nil})
	tbl.Append(Row{"nct_id": "NCT003"})

	values := tbl.Column("sponsor")
	if len(values) != 3 {
		t.Fatalf("Column() returned %d values, want 3", len(values))
	}
	if values[0] != "Acme" {
		t.Errorf("values[0] = %v, want Acme", values[0])
	}
	if values[1] != nil || values[2] != nil {
		t.Errorf("Missing values should be nil, got %v, %v", values[1], values[2])
	}
}

func TestTable_MergeByKey(t *testing.T) {
	left := New([]string{"nct_id", "brief_title", "sponsor"})
	left.Append(Row{"nct_id": "NCT001", "brief_title": "Alpha", "sponsor": nil})
	left.Append(Row{"nct_id": "NCT002", "brief_title": "Beta", "sponsor": "Acme"})

	right := New([]string{"nct_id", "sponsor", "phase"})
	right.Append(Row{"nct_id": "NCT001", "sponsor": "Umbrella", "phase": "PHASE1"})
	right.Append(Row{"nct_id": "NCT003", "sponsor": "Initech", "phase": "PHASE3"})

	merged := left.MergeByKey(right, "nct_id")

	columns := merged.Columns()
	want := []string{"nct_id", "brief_title", "sponsor", "phase"}
	if len(columns) != len(want) {
		t.Fatalf("Columns() = %v, want %v", columns, want)
	}
	for i := range want {
		if columns[i] != want[i] {
			t.Errorf("Columns()[%d] = %q, want %q", i, columns[i], want[i])
		}
	}

	if merged.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", merged.Len())
	}

	// Matched row: left values win, right fills nil columns only.
	first := merged.Row(0)
	if first["sponsor"] != "Umbrella" {
		t.Errorf("sponsor = %v, want Umbrella (filled from right)", first["sponsor"])
	}
	if first["phase"] != "PHASE1" {
		t.Errorf("phase = %v, want PHASE1", first["phase"])
	}

	second := merged.Row(1)
	if second["sponsor"] != "Acme" {
		t.Errorf("sponsor = %v, want Acme (left value kept)", second["sponsor"])
	}

	// Right-only row carried over.
	third := merged.Row(2)
	if third["nct_id"] != "NCT003" || third["phase"] != "PHASE3" {
		t.Errorf("Right-only row = %v", third)
	}

	// Merge must not mutate the inputs.
	if left.Row(0)["sponsor"] != nil {
		t.Error("MergeByKey mutated the left table")
	}
}

func TestTable_WriteCSV(t *testing.T) {
	tbl := New([]string{"nct_id", "enrollment_count", "start_date", "sponsor"})
	tbl.Append(Row{
		"nct_id":           "NCT001",
		"enrollment_count": 120,
		"start_date":       time.Date(2022, 1, 15, 0, 0, 0, 0, time.UTC),
		"sponsor":          "Acme Therapeutics",
	})
	tbl.Append(Row{
		"nct_id":           "NCT002",
		"enrollment_count": nil,
		"start_date":       nil,
		"sponsor":          nil,
	})

	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV has %d lines, want 3 (header + 2 rows)", len(lines))
	}
	if lines[0] != "nct_id,enrollment_count,start_date,sponsor" {
		t.Errorf("Header = %q", lines[0])
	}
	if lines[1] != "NCT001,120,2022-01-15,Acme Therapeutics" {
		t.Errorf("Row 1 = %q", lines[1])
	}
	if lines[2] != "NCT002,,," {
		t.Errorf("Row 2 = %q, want empty fields for nil values", lines[2])
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"int", 42, "42"},
		{"float", 3.5, "3.5"},
		{"bool", true, "true"},
		{"time", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "2024-06-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.value); got != tt.expected {
				t.Errorf("formatValue(%v) = %q, want %q", tt.value, got, tt.expected)
			}
		})
	}
}
