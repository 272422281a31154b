package fetcher

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
)

// rosterSetters maps normalized roster column names onto record fields.
// Plans and boards disagree on header spelling; normalizeHeader folds the
// common variants together.
var rosterSetters = map[string]func(*model.ProviderRecord, string){
	"npi":            func(p *model.ProviderRecord, v string) { p.NPI = v },
	"first_name":     func(p *model.ProviderRecord, v string) { p.FirstName = v },
	"last_name":      func(p *model.ProviderRecord, v string) { p.LastName = v },
	"phone":          func(p *model.ProviderRecord, v string) { p.Phone = v },
	"email":          func(p *model.ProviderRecord, v string) { p.Email = v },
	"address_line1":  func(p *model.ProviderRecord, v string) { p.AddressLine1 = v },
	"address_line2":  func(p *model.ProviderRecord, v string) { p.AddressLine2 = v },
	"city":           func(p *model.ProviderRecord, v string) { p.City = v },
	"state":          func(p *model.ProviderRecord, v string) { p.State = v },
	"postal_code":    func(p *model.ProviderRecord, v string) { p.PostalCode = v },
	"website":        func(p *model.ProviderRecord, v string) { p.Website = v },
	"taxonomy":       func(p *model.ProviderRecord, v string) { p.Taxonomy = v },
	"license_number": func(p *model.ProviderRecord, v string) { p.LicenseNumber = v },
	"license_state":  func(p *model.ProviderRecord, v string) { p.LicenseState = v },
}

// headerAliases folds common column spellings onto canonical names.
var headerAliases = map[string]string{
	"npi_number":       "npi",
	"provider_npi":     "npi",
	"firstname":        "first_name",
	"lastname":         "last_name",
	"phone_number":     "phone",
	"telephone":        "phone",
	"email_address":    "email",
	"address":          "address_line1",
	"address1":         "address_line1",
	"address2":         "address_line2",
	"zip":              "postal_code",
	"zip_code":         "postal_code",
	"specialty":        "taxonomy",
	"license":          "license_number",
	"license_no":       "license_number",
	"url":              "website",
	"practice_website": "website",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	if canonical, ok := headerAliases[h]; ok {
		return canonical
	}
	return h
}

// ParseCSV reads a roster CSV with a header row into provider records.
// Rows without an NPI are skipped with a warning; they cannot enter the
// pipeline.
func ParseCSV(ctx context.Context, r io.Reader) ([]*model.ProviderRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("fetcher: empty roster")
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read roster header")
	}
	for i, h := range header {
		header[i] = normalizeHeader(h)
	}

	var records []*model.ProviderRecord
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "fetcher: roster parse cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read roster row")
		}

		p := rowToRecord(header, row)
		if p.NPI == "" {
			skipped++
			continue
		}
		records = append(records, p)
	}

	if skipped > 0 {
		zap.L().Warn("skipped roster rows without NPI", zap.Int("count", skipped))
	}
	return records, nil
}

// ParseXLSX reads the first sheet of a roster workbook into provider
// records. The first row must be the header.
func ParseXLSX(path string) ([]*model.ProviderRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open roster workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("fetcher: roster workbook has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("fetcher: empty roster")
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = normalizeHeader(cell.String())
	}

	var records []*model.ProviderRecord
	skipped := 0
	for _, row := range sheet.Rows[1:] {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}

		p := rowToRecord(header, cells)
		if p.NPI == "" {
			skipped++
			continue
		}
		records = append(records, p)
	}

	if skipped > 0 {
		zap.L().Warn("skipped roster rows without NPI", zap.Int("count", skipped))
	}
	return records, nil
}

// ParseJSON reads a roster JSON array into provider records. Incoming
// status and confidence fields are discarded; every imported record
// starts pending.
func ParseJSON(r io.Reader) ([]*model.ProviderRecord, error) {
	var raw []model.ProviderRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "fetcher: decode roster json")
	}

	var records []*model.ProviderRecord
	skipped := 0
	for _, in := range raw {
		if strings.TrimSpace(in.NPI) == "" {
			skipped++
			continue
		}
		p := model.NewProviderRecord(strings.TrimSpace(in.NPI))
		p.FirstName = in.FirstName
		p.LastName = in.LastName
		p.Phone = in.Phone
		p.Email = in.Email
		p.AddressLine1 = in.AddressLine1
		p.AddressLine2 = in.AddressLine2
		p.City = in.City
		p.State = in.State
		p.PostalCode = in.PostalCode
		p.Website = in.Website
		p.Taxonomy = in.Taxonomy
		p.LicenseNumber = in.LicenseNumber
		p.LicenseState = in.LicenseState
		records = append(records, p)
	}

	if skipped > 0 {
		zap.L().Warn("skipped roster entries without NPI", zap.Int("count", skipped))
	}
	return records, nil
}

func rowToRecord(header []string, row []string) *model.ProviderRecord {
	p := model.NewProviderRecord("")
	for i, value := range row {
		if i >= len(header) {
			break
		}
		set, ok := rosterSetters[header[i]]
		if !ok {
			continue
		}
		set(p, strings.TrimSpace(value))
	}
	return p
}

// LoadRoster fetches and parses a roster from a source, which may be a
// local path or an http(s):// or ftp:// URL. The format is picked by
// file extension: .csv, .xlsx, or .json.
func LoadRoster(ctx context.Context, source string, httpF *HTTPFetcher, ftpF *FTPFetcher) ([]*model.ProviderRecord, error) {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(source, "?", 2)[0]))

	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return loadRemote(ctx, source, ext, httpF)
	case strings.HasPrefix(source, "ftp://"):
		return loadRemote(ctx, source, ext, ftpF)
	}

	// Local file.
	switch ext {
	case ".xlsx":
		return ParseXLSX(source)
	case ".json":
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open roster %s", source)
		}
		defer f.Close()
		return ParseJSON(f)
	case ".csv":
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open roster %s", source)
		}
		defer f.Close()
		return ParseCSV(ctx, f)
	}
	return nil, eris.Errorf("fetcher: unsupported roster format %q", ext)
}

func loadRemote(ctx context.Context, source, ext string, f Fetcher) ([]*model.ProviderRecord, error) {
	switch ext {
	case ".csv":
		body, err := f.Download(ctx, source)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return ParseCSV(ctx, body)
	case ".json":
		body, err := f.Download(ctx, source)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return ParseJSON(body)
	case ".xlsx":
		// The xlsx reader needs random access; spool to a temp file.
		tmp, err := os.CreateTemp("", "roster-*.xlsx")
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create temp roster")
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)

		if _, err := f.DownloadToFile(ctx, source, tmpPath); err != nil {
			return nil, err
		}
		return ParseXLSX(tmpPath)
	}
	return nil, eris.Errorf("fetcher: unsupported roster format %q", ext)
}
