package trials

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/trialscope/ctgov-client/pkg/table"
)

// Column describes one output column of a flattened study record: a name and
// an extraction function over the decoded record. Extraction is best-effort;
// an absent path yields nil, never an error.
type Column struct {
	Name    string
	Extract func(rec map[string]any) any
}

// studyColumns is the declarative flattening table. Slice order defines the
// column order of the result table.
var studyColumns = []Column{
	{"nct_id", path("protocolSection", "identificationModule", "nctId")},
	{"org_study_id", path("protocolSection", "identificationModule", "orgStudyIdInfo", "id")},
	{"brief_title", path("protocolSection", "identificationModule", "briefTitle")},
	{"overall_status", path("protocolSection", "statusModule", "overallStatus")},
	{"last_known_status", path("protocolSection", "statusModule", "lastKnownStatus")},
	{"start_date", date(path("protocolSection", "statusModule", "startDateStruct", "date"))},
	{"completion_date", date(path("protocolSection", "statusModule", "completionDateStruct", "date"))},
	{"sponsor", path("protocolSection", "sponsorCollaboratorsModule", "leadSponsor", "name")},
	{"brief_summary", path("protocolSection", "descriptionModule", "briefSummary")},
	{"conditions", joined(path("protocolSection", "conditionsModule", "conditions"))},
	{"keywords", joined(path("protocolSection", "conditionsModule", "keywords"))},
	{"enrollment_count", asInt(path("protocolSection", "designModule", "enrollmentInfo", "count"))},
	{"study_type", path("protocolSection", "designModule", "studyType")},
	{"phase", joined(path("protocolSection", "designModule", "phases"))},
	{"locations", extractLocations},
}

// ColumnNames returns the flattened column names in output order.
func ColumnNames() []string {
	names := make([]string, len(studyColumns))
	for i, col := range studyColumns {
		names[i] = col.Name
	}
	return names
}

// FlattenStudy converts one nested study record into a flat row. Every
// column is always present in the row; fields missing from the record map to
// nil. The returned error is non-nil only when the record itself is not a
// JSON object - the row (all nil) is still returned so a malformed record
// keeps its place in the result.
func FlattenStudy(raw json.RawMessage) (table.Row, error) {
	row := make(table.Row, len(studyColumns))

	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		for _, col := range studyColumns {
			row[col.Name] = nil
		}
		return row, fmt.Errorf("decode study record: %w", err)
	}

	for _, col := range studyColumns {
		row[col.Name] = col.Extract(rec)
	}
	return row, nil
}

// path returns an extractor that walks nested objects key by key.
func path(keys ...string) func(map[string]any) any {
	return func(rec map[string]any) any {
		var cur any = rec
		for _, key := range keys {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur, ok = obj[key]
			if !ok {
				return nil
			}
		}
		return cur
	}
}

// joined wraps an extractor yielding a string list and joins it with ", ".
func joined(inner func(map[string]any) any) func(map[string]any) any {
	return func(rec map[string]any) any {
		list, ok := inner(rec).([]any)
		if !ok {
			return nil
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
}

// asInt wraps an extractor yielding a JSON number and converts it to int.
func asInt(inner func(map[string]any) any) func(map[string]any) any {
	return func(rec map[string]any) any {
		f, ok := inner(rec).(float64)
		if !ok {
			return nil
		}
		return int(f)
	}
}

// dateLayouts covers the partial dates the API serves ("2021-03-04",
// "2021-03", "2021").
var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// date wraps an extractor yielding a date string and parses it best-effort.
// Unparseable values map to nil rather than failing the record.
func date(inner func(map[string]any) any) func(map[string]any) any {
	return func(rec map[string]any) any {
		s, ok := inner(rec).(string)
		if !ok {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return nil
	}
}

// extractLocations renders the locations block as
// "Facility (City, Country), ...", matching one entry per listed site.
func extractLocations(rec map[string]any) any {
	list, ok := path("protocolSection", "contactsLocationsModule", "locations")(rec).([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	parts := make([]string, 0, len(list))
	for _, item := range list {
		loc, ok := item.(map[string]any)
		if !ok {
			continue
		}
		facility, _ := loc["facility"].(string)
		city, _ := loc["city"].(string)
		country, _ := loc["country"].(string)
		parts = append(parts, fmt.Sprintf("%s (%s, %s)", facility, city, country))
	}
	return strings.Join(parts, ", ")
}
