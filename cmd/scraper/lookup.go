package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"house-prices/internal/models"
)

var lookupJSON bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <address>",
	Short: "Look up estimates for one address",
	Example: `  house-prices lookup "21 Onslow Road, Lake Hayes Estate"
  house-prices lookup --sites qv,homes --json "2/677 Worcester Street, Linwood, Christchurch"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, rt, done, err := startRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		report, err := rt.Orchestrator.Lookup(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if lookupJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		return writeReport(os.Stdout, report)
	},
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(lookupCmd)
}

var amountPrinter = message.NewPrinter(language.English)

func formatAmount(v *int64) string {
	if v == nil {
		return "-"
	}
	return amountPrinter.Sprintf("$%d", *v)
}

// writeReport prints one aligned row per site
func writeReport(w io.Writer, report *models.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n\n", report.Address)
	fmt.Fprintln(tw, "SITE\tMIDPOINT\tUPPER\tLOWER\tNOTE")
	for _, row := range report.Rows() {
		note := row.Reason
		if res, ok := report.Result(row.Site); ok && res.FromCache && note == "" {
			note = "cached url"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.Site, formatAmount(row.Midpoint), formatAmount(row.Upper), formatAmount(row.Lower), note)
	}
	fmt.Fprintf(tw, "\n%d/%d sites succeeded in %s\n",
		report.Summary.Succeeded, report.Summary.Sites, report.Duration.Round(time.Millisecond))
	return tw.Flush()
}
