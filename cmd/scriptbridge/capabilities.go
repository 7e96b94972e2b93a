package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/scriptbridge/capability"
)

func newCapabilitiesCmd() *cobra.Command {
	var (
		query string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List the capabilities scripts can call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := capability.Standard(capability.Services{})
			if err != nil {
				return err
			}
			catalog, err := capability.NewCatalog(reg)
			if err != nil {
				return err
			}

			names := reg.Names()
			if query != "" {
				results, err := catalog.Search(query, limit)
				if err != nil {
					return fmt.Errorf("search capabilities: %w", err)
				}
				names = names[:0]
				for _, r := range results {
					names = append(names, r.Name)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range names {
				def, ok := reg.Lookup(name)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", def.Signature(), def.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&query, "search", "", "rank capabilities by relevance to a query")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum search results")
	return cmd
}
