package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"house-prices/internal/models"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Look up every address in a file",
	Long: `Reads one address per line ("-" for stdin). Blank lines and lines starting
with # are skipped. Prints one CSV row per address and site:

address,site,midpoint,upper,lower,reason`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		addrs, err := readAddresses(in)
		if err != nil {
			return err
		}
		if len(addrs) == 0 {
			return fmt.Errorf("no addresses in %s", args[0])
		}

		ctx, rt, done, err := startRuntime(cmd)
		if err != nil {
			return err
		}
		defer done()

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(len(addrs),
				progressbar.OptionSetDescription("Looking up addresses"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		out := newBatchWriter(os.Stdout)
		succeeded := 0
		for _, addr := range addrs {
			if ctx.Err() != nil {
				log.Println("Received interrupt signal, stopping batch")
				break
			}
			report, err := rt.Orchestrator.Lookup(ctx, addr)
			if err != nil {
				log.Printf("Skipping %q: %v", addr, err)
			} else {
				succeeded += report.Summary.Succeeded
				if err := out.write(report); err != nil {
					return err
				}
			}
			if bar != nil {
				bar.Add(1)
			}
		}
		log.Printf("Batch complete: %d addresses, %d site estimates", len(addrs), succeeded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

// readAddresses returns the non-blank, non-comment lines of r
func readAddresses(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

type batchWriter struct {
	w      *csv.Writer
	header bool
}

func newBatchWriter(w io.Writer) *batchWriter {
	return &batchWriter{w: csv.NewWriter(w)}
}

func (b *batchWriter) write(report *models.Report) error {
	if !b.header {
		b.w.Write([]string{"address", "site", "midpoint", "upper", "lower", "reason"})
		b.header = true
	}
	for _, row := range report.Rows() {
		b.w.Write([]string{report.Address, row.Site, csvAmount(row.Midpoint), csvAmount(row.Upper), csvAmount(row.Lower), row.Reason})
	}
	b.w.Flush()
	return b.w.Error()
}

func csvAmount(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
