package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/internal/report"
)

var (
	reportBatchID string
	reportID      string
	reportFormat  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the validation report for a batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var rep *model.ValidationReport
		switch {
		case reportID != "":
			rep, err = st.GetReport(ctx, reportID)
		case reportBatchID != "":
			rep, err = st.LatestReport(ctx, reportBatchID)
		default:
			return eris.New("either --batch-id or --report-id is required")
		}
		if err != nil {
			return eris.Wrap(err, "load report")
		}

		switch reportFormat {
		case "markdown", "":
			fmt.Print(report.Format(rep))
			return nil
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		return eris.Errorf("unknown format %q", reportFormat)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportBatchID, "batch-id", "", "batch to fetch the latest report for")
	reportCmd.Flags().StringVar(&reportID, "report-id", "", "specific report to fetch")
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "output format (markdown or json)")
	rootCmd.AddCommand(reportCmd)
}
