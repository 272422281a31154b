package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
)

var (
	validateNPI     string
	validateFile    string
	validateRecord  model.ProviderRecord
	validateNoStore bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a single provider record",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		record, err := buildValidateRecord()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orch.Run(ctx, record)
		if err != nil {
			return eris.Wrapf(err, "validate %s", record.NPI)
		}

		zap.L().Info("validation complete",
			zap.String("npi", res.Record.NPI),
			zap.String("status", string(res.Record.ValidationStatus)),
			zap.Float64("overall_confidence", res.Record.OverallConfidence),
			zap.Strings("stages_run", res.StagesRun),
		)

		if !validateNoStore {
			batch := model.NewValidationBatch([]*model.ProviderRecord{res.Record})
			if err := env.Store.CreateBatch(ctx, batch); err != nil {
				return eris.Wrap(err, "persist result")
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Record)
	},
}

// buildValidateRecord assembles the input record from --file or flags.
func buildValidateRecord() (*model.ProviderRecord, error) {
	if validateFile != "" {
		data, err := os.ReadFile(validateFile)
		if err != nil {
			return nil, eris.Wrapf(err, "read record file %s", validateFile)
		}
		var p model.ProviderRecord
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "parse record file")
		}
		record := model.NewProviderRecord(p.NPI)
		p.ValidationStatus = record.ValidationStatus
		p.ReviewPriority = record.ReviewPriority
		return &p, nil
	}

	record := model.NewProviderRecord(validateNPI)
	record.FirstName = validateRecord.FirstName
	record.LastName = validateRecord.LastName
	record.Phone = validateRecord.Phone
	record.Email = validateRecord.Email
	record.AddressLine1 = validateRecord.AddressLine1
	record.City = validateRecord.City
	record.State = validateRecord.State
	record.PostalCode = validateRecord.PostalCode
	record.Website = validateRecord.Website
	record.Taxonomy = validateRecord.Taxonomy
	record.LicenseNumber = validateRecord.LicenseNumber
	record.LicenseState = validateRecord.LicenseState
	return record, nil
}

func init() {
	validateCmd.Flags().StringVar(&validateNPI, "npi", "", "provider NPI (required unless --file)")
	validateCmd.Flags().StringVar(&validateFile, "file", "", "JSON file with the provider record")
	validateCmd.Flags().StringVar(&validateRecord.FirstName, "first-name", "", "provider first name")
	validateCmd.Flags().StringVar(&validateRecord.LastName, "last-name", "", "provider last name")
	validateCmd.Flags().StringVar(&validateRecord.Phone, "phone", "", "practice phone")
	validateCmd.Flags().StringVar(&validateRecord.Email, "email", "", "contact email")
	validateCmd.Flags().StringVar(&validateRecord.AddressLine1, "address", "", "practice address line")
	validateCmd.Flags().StringVar(&validateRecord.City, "city", "", "practice city")
	validateCmd.Flags().StringVar(&validateRecord.State, "state", "", "practice state")
	validateCmd.Flags().StringVar(&validateRecord.PostalCode, "zip", "", "postal code")
	validateCmd.Flags().StringVar(&validateRecord.Website, "website", "", "practice website URL")
	validateCmd.Flags().StringVar(&validateRecord.Taxonomy, "taxonomy", "", "primary taxonomy description")
	validateCmd.Flags().StringVar(&validateRecord.LicenseNumber, "license", "", "state license number")
	validateCmd.Flags().StringVar(&validateRecord.LicenseState, "license-state", "", "license state (defaults to --state)")
	validateCmd.Flags().BoolVar(&validateNoStore, "no-store", false, "skip persisting the result")
	rootCmd.AddCommand(validateCmd)
}
