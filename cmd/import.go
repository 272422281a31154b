package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/fetcher"
	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/internal/resilience"
)

var importSource string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a provider roster as a new validation batch",
	Long:  "Reads a roster (CSV, XLSX, or JSON) from a local path or an http(s):// or ftp:// URL and stores it as a pending batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if importSource == "" {
			return eris.New("--source is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Retry: resilience.DefaultRetryConfig(),
		})
		ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Import.FTPTimeoutSecs) * time.Second,
		})

		records, err := fetcher.LoadRoster(ctx, importSource, httpF, ftpF)
		if err != nil {
			return eris.Wrapf(err, "load roster %s", importSource)
		}
		if len(records) == 0 {
			return eris.New("roster contains no usable records")
		}

		batch := model.NewValidationBatch(records)
		if err := st.CreateBatch(ctx, batch); err != nil {
			return eris.Wrap(err, "store batch")
		}

		zap.L().Info("roster imported",
			zap.String("batch_id", batch.BatchID),
			zap.Int("providers", batch.TotalProviders),
			zap.String("source", importSource),
		)
		fmt.Println(batch.BatchID)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "roster path or URL (.csv, .xlsx, .json)")
	rootCmd.AddCommand(importCmd)
}
