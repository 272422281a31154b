package salesforce

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// ProviderUpdate carries the validated directory fields for one provider
// contact keyed by NPI.
type ProviderUpdate struct {
	NPI    string
	Fields map[string]any
}

// contactByNPI is the SOQL result shape for the NPI-to-ID resolution.
type contactByNPI struct {
	Id   string `json:"Id"`
	NPI  string `json:"NPI__c"`
	Name string `json:"Name"`
}

// SyncValidatedProviders resolves each NPI to its directory Contact and
// pushes the validated fields in one collection update. Providers without
// a matching Contact are skipped and returned in the missing list.
func SyncValidatedProviders(ctx context.Context, c Client, updates []ProviderUpdate) (results []CollectionResult, missing []string, err error) {
	if len(updates) == 0 {
		return nil, nil, nil
	}

	npis := make([]string, len(updates))
	for i, u := range updates {
		npis[i] = "'" + escapeSoql(u.NPI) + "'"
	}

	var found struct {
		Records []contactByNPI
	}
	soql := "SELECT Id, NPI__c FROM Contact WHERE NPI__c IN (" + strings.Join(npis, ",") + ")"
	if err := c.Query(ctx, soql, &found); err != nil {
		return nil, nil, eris.Wrap(err, "sf: resolve provider contacts")
	}

	idByNPI := make(map[string]string, len(found.Records))
	for _, r := range found.Records {
		idByNPI[r.NPI] = r.Id
	}

	var records []CollectionRecord
	for _, u := range updates {
		id, ok := idByNPI[u.NPI]
		if !ok {
			missing = append(missing, u.NPI)
			continue
		}
		records = append(records, CollectionRecord{ID: id, Fields: u.Fields})
	}

	if len(records) == 0 {
		return nil, missing, nil
	}

	results, err = c.UpdateCollection(ctx, "Contact", records)
	if err != nil {
		return nil, missing, err
	}
	return results, missing, nil
}

// escapeSoql escapes single quotes and backslashes for SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
