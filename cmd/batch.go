package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/fetcher"
	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/internal/report"
	"github.com/sells-group/directory-cli/internal/resilience"
	"github.com/sells-group/directory-cli/pkg/notion"
	sfpkg "github.com/sells-group/directory-cli/pkg/salesforce"
)

var (
	batchID            string
	batchRoster        string
	batchPublishReview bool
	batchSyncSF        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the validation pipeline over a batch of providers",
	Long:  "Processes a previously imported batch (--batch-id) or a roster source (--roster) through validation, enrichment, and quality assurance, then generates and stores the batch report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		batch, err := resolveBatch(ctx, env)
		if err != nil {
			return err
		}

		zap.L().Info("batch started",
			zap.String("batch_id", batch.BatchID),
			zap.Int("providers", batch.TotalProviders),
		)

		outcome, err := env.Runner.Run(ctx, batch)
		if err != nil {
			return eris.Wrapf(err, "run batch %s", batch.BatchID)
		}

		if err := env.Store.SaveProviders(ctx, batch.BatchID, outcome.Completed); err != nil {
			return eris.Wrap(err, "save providers")
		}

		rep := report.Generate(batch, outcome.Completed, outcome.Failed)
		if err := env.Store.SaveReport(ctx, rep); err != nil {
			return eris.Wrap(err, "save report")
		}

		if batchPublishReview {
			if err := publishReviewQueue(ctx, env.Notion, rep); err != nil {
				return err
			}
		}
		if batchSyncSF {
			if err := syncValidated(ctx, outcome.Completed); err != nil {
				return err
			}
		}

		fmt.Print(report.Format(rep))
		return nil
	},
}

// resolveBatch loads the batch to process from the store or a roster
// source.
func resolveBatch(ctx context.Context, env *pipelineEnv) (*model.ValidationBatch, error) {
	switch {
	case batchID != "" && batchRoster != "":
		return nil, eris.New("--batch-id and --roster are mutually exclusive")
	case batchID != "":
		return env.Store.GetBatch(ctx, batchID)
	case batchRoster != "":
		httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Retry: resilience.DefaultRetryConfig(),
		})
		ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Import.FTPTimeoutSecs) * time.Second,
		})
		records, err := fetcher.LoadRoster(ctx, batchRoster, httpF, ftpF)
		if err != nil {
			return nil, eris.Wrapf(err, "load roster %s", batchRoster)
		}
		if len(records) == 0 {
			return nil, eris.New("roster contains no usable records")
		}
		batch := model.NewValidationBatch(records)
		if err := env.Store.CreateBatch(ctx, batch); err != nil {
			return nil, eris.Wrap(err, "store batch")
		}
		return batch, nil
	}
	return nil, eris.New("either --batch-id or --roster is required")
}

// publishReviewQueue pushes the report's prioritized review list to the
// Notion review queue.
func publishReviewQueue(ctx context.Context, client notion.Client, rep *model.ValidationReport) error {
	if client == nil {
		return eris.New("--publish-review requires DIRECTORY_NOTION_TOKEN and DIRECTORY_NOTION_REVIEW_DB")
	}

	published := 0
	for _, alert := range report.Alerts(rep) {
		p := findListed(rep, alert.ProviderNPI)
		if p == nil {
			continue
		}
		_, err := notion.PublishReviewEntry(ctx, client, cfg.Notion.ReviewDB, notion.ReviewEntry{
			NPI:       alert.ProviderNPI,
			Name:      alert.ProviderName,
			Priority:  alert.Priority,
			Status:    string(p.ValidationStatus),
			AlertType: alert.AlertType,
			Notes:     joinNotes(p),
		})
		if err != nil {
			zap.L().Error("review entry publish failed",
				zap.String("npi", alert.ProviderNPI),
				zap.Error(err))
			continue
		}
		published++
	}

	zap.L().Info("review queue published",
		zap.String("report_id", rep.ReportID),
		zap.Int("published", published),
	)
	return nil
}

func findListed(rep *model.ValidationReport, npi string) *model.ProviderRecord {
	for _, p := range rep.PrioritizedReviewList {
		if p.NPI == npi {
			return p
		}
	}
	return nil
}

func joinNotes(p *model.ProviderRecord) string {
	out := ""
	for _, d := range p.Discrepancies {
		out += d + "\n"
	}
	for _, n := range p.ValidationNotes {
		out += n + "\n"
	}
	return out
}

// syncValidated pushes validated contact fields to the directory CRM.
func syncValidated(ctx context.Context, providers []*model.ProviderRecord) error {
	sfClient, err := initSalesforce()
	if err != nil {
		return err
	}

	var updates []sfpkg.ProviderUpdate
	for _, p := range providers {
		if p.ValidationStatus != model.StatusValidated {
			continue
		}
		updates = append(updates, sfpkg.ProviderUpdate{
			NPI: p.NPI,
			Fields: map[string]any{
				"Phone":                   p.Phone,
				"Email":                   p.Email,
				"MailingStreet":           p.AddressLine1,
				"MailingCity":             p.City,
				"MailingState":            p.State,
				"MailingPostalCode":       p.PostalCode,
				"Directory_Confidence__c": p.OverallConfidence,
			},
		})
	}
	if len(updates) == 0 {
		zap.L().Info("no validated providers to sync")
		return nil
	}

	results, missing, err := sfpkg.SyncValidatedProviders(ctx, sfClient, updates)
	if err != nil {
		return eris.Wrap(err, "sync validated providers")
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	zap.L().Info("salesforce sync complete",
		zap.Int("updated", len(results)-failed),
		zap.Int("failed", failed),
		zap.Int("missing_contacts", len(missing)),
	)
	return nil
}

func init() {
	batchCmd.Flags().StringVar(&batchID, "batch-id", "", "previously imported batch to process")
	batchCmd.Flags().StringVar(&batchRoster, "roster", "", "roster path or URL to import and process")
	batchCmd.Flags().BoolVar(&batchPublishReview, "publish-review", false, "publish the review list to the Notion queue")
	batchCmd.Flags().BoolVar(&batchSyncSF, "sync-salesforce", false, "push validated records to Salesforce")
	rootCmd.AddCommand(batchCmd)
}
