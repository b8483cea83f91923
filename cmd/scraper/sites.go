package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"house-prices/internal/sites"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List supported sites and whether each is enabled",
	Run: func(_ *cobra.Command, _ []string) {
		for _, name := range sites.Names() {
			mark := " "
			if slices.Contains(cfg.Sites, name) {
				mark = "*"
			}
			interval := cfg.DefaultInterval
			if d, ok := cfg.SiteIntervals[name]; ok {
				interval = d
			}
			fmt.Printf("%s %-14s every %s\n", mark, name, interval)
		}
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}
