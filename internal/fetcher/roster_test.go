package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const rosterCSV = `NPI,First Name,Last Name,Phone,Email,Address,City,State,Zip,Specialty,License No
1234567890,Jane,Smith,555-123-4567,jane@clinic.example,123 Main St,Springfield,IL,62704,Internal Medicine,A12345
,Bob,NoNPI,555-000-0000,,,,,,,
2234567890,Amir,Patel,555-234-5678,amir@clinic.example,9 Oak Ave,Peoria,IL,61602,Cardiology,B54321
`

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "NPI Number", want: "npi"},
		{in: "provider-npi", want: "npi"},
		{in: "FirstName", want: "first_name"},
		{in: "ZIP", want: "postal_code"},
		{in: "Specialty", want: "taxonomy"},
		{in: "License No", want: "license_number"},
		{in: "Practice Website", want: "website"},
		{in: "  phone  ", want: "phone"},
		{in: "unmapped_column", want: "unmapped_column"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeHeader(tt.in), tt.in)
	}
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	records, err := ParseCSV(context.Background(), strings.NewReader(rosterCSV))
	require.NoError(t, err)
	require.Len(t, records, 2, "the row without an NPI is skipped")

	p := records[0]
	assert.Equal(t, "1234567890", p.NPI)
	assert.Equal(t, "Jane Smith", p.FullName())
	assert.Equal(t, "555-123-4567", p.Phone)
	assert.Equal(t, "jane@clinic.example", p.Email)
	assert.Equal(t, "123 Main St", p.AddressLine1)
	assert.Equal(t, "62704", p.PostalCode)
	assert.Equal(t, "Internal Medicine", p.Taxonomy)
	assert.Equal(t, "A12345", p.LicenseNumber)
	assert.Equal(t, model.StatusPending, p.ValidationStatus)
	assert.Equal(t, 1, p.ReviewPriority)
}

func TestParseCSVEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty roster")
}

func TestParseCSVRaggedRows(t *testing.T) {
	t.Parallel()

	in := "npi,first_name,last_name\n1234567890,Jane\n2234567890,Amir,Patel,extra\n"
	records, err := ParseCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jane", records[0].FirstName)
	assert.Empty(t, records[0].LastName)
	assert.Equal(t, "Patel", records[1].LastName)
}

func TestParseCSVCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseCSV(ctx, strings.NewReader(rosterCSV))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	in := `[
		{"npi": "1234567890", "first_name": "Jane", "last_name": "Smith",
		 "validation_status": "validated", "overall_confidence": 0.99, "review_priority": 9},
		{"npi": "  ", "first_name": "NoNPI"},
		{"npi": " 2234567890 ", "last_name": "Patel"}
	]`

	records, err := ParseJSON(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Incoming status and confidence are discarded; imports start pending.
	assert.Equal(t, model.StatusPending, records[0].ValidationStatus)
	assert.Zero(t, records[0].OverallConfidence)
	assert.Equal(t, 1, records[0].ReviewPriority)
	assert.Equal(t, "2234567890", records[1].NPI)
}

func TestParseJSONMalformed(t *testing.T) {
	t.Parallel()

	_, err := ParseJSON(strings.NewReader(`{"not": "an array"}`))
	assert.Error(t, err)
}

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Roster")
	require.NoError(t, err)
	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestParseXLSX(t *testing.T) {
	t.Parallel()

	path := writeXLSX(t, [][]string{
		{"NPI", "First Name", "Last Name", "State"},
		{"1234567890", "Jane", "Smith", "IL"},
		{"", "Bob", "NoNPI", "IL"},
		{"2234567890", "Amir", "Patel", "IL"},
	})

	records, err := ParseXLSX(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jane", records[0].FirstName)
	assert.Equal(t, "IL", records[1].State)
}

func TestParseXLSXMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ParseXLSX(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}

func TestLoadRosterLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(rosterCSV), 0o644))

	records, err := LoadRoster(context.Background(), csvPath, nil, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLoadRosterUnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := LoadRoster(context.Background(), "roster.parquet", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported roster format")
}

func TestLoadRosterHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(rosterCSV))
	}))
	defer srv.Close()

	httpF := NewHTTPFetcher(HTTPOptions{Retry: resilience.RetryConfig{MaxAttempts: 1}})
	records, err := LoadRoster(context.Background(), srv.URL+"/roster.csv", httpF, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLoadRosterHTTPQueryStringIgnoredForFormat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"npi": "1234567890"}]`))
	}))
	defer srv.Close()

	httpF := NewHTTPFetcher(HTTPOptions{Retry: resilience.RetryConfig{MaxAttempts: 1}})
	records, err := LoadRoster(context.Background(), srv.URL+"/roster.json?token=abc", httpF, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
