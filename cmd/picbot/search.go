package main

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/picbot/config"
	"github.com/spf13/cobra"
)

// searchCMD runs one provider query from the shell, handy for checking keys.
func searchCMD(cfgPath *string) *cobra.Command {
	var limit int
	var search = &cobra.Command{
		Use:   "search <query>",
		Short: "Print the image URLs a query would browse",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath, config.RequireSearch)
			if err != nil {
				return err
			}
			if limit > 0 {
				cfg.Search.MaxResults = limit
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			fetcher, err := newFetcher(cfg, logger)
			if err != nil {
				return err
			}
			urls, err := fetcher.Fetch(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(urls) == 0 {
				fmt.Fprintln(out, "No images found.")
				return nil
			}
			for i, u := range urls {
				fmt.Fprintf(out, "%d\t%s\n", i+1, u)
			}
			return nil
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", 0, "override search.max_results")
	return search
}
