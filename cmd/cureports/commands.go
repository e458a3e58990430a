package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cureports/internal/queries"
	"cureports/internal/reports"
)

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cureports",
		Short:         "Crypto Unicorns tokenomics and bank reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newCUReportsCommand(a))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

func newCUReportsCommand(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "cu-reports",
		Short: "Manage report queries and publish their results",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.HasSubCommands() {
				return nil
			}
			return a.setup(cmd.Context(), cmd.CommandPath(), token)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&token, "moonstream-token", "", "Moonstream access token (defaults to $MOONSTREAM_ACCESS_TOKEN)")

	cmd.AddCommand(newQueriesCommand(a))
	cmd.AddCommand(newGenerateReportsCommand(a))
	return cmd
}

func newQueriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Saved query operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newQueriesListCommand(a))
	cmd.AddCommand(newQueriesCreateCommand(a))
	cmd.AddCommand(newQueriesDeleteCommand(a))
	cmd.AddCommand(newQueriesInitCommand(a, "init-game-bank", "Create the game bank queries",
		func(c *queries.Catalogue) []queries.Definition { return c.GameBank }))
	cmd.AddCommand(newQueriesInitCommand(a, "init-tokenomics", "Create the tokenomics queries",
		func(c *queries.Catalogue) []queries.Definition { return c.Tokenomics }))
	cmd.AddCommand(newRunTokenomicsCommand(a))
	return cmd
}

func newQueriesListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.api.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, q := range list {
				fmt.Fprintf(w, "%s\t%s\n", q.ID, q.Name)
			}
			return w.Flush()
		},
	}
}

func newQueriesCreateCommand(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one tokenomics query by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := queries.Load()
			if err != nil {
				return err
			}
			def, ok := cat.Tokenomic(name)
			if !ok {
				return fmt.Errorf("unknown tokenomics query %q", name)
			}
			_, err = queries.Install(cmd.Context(), a.api, []queries.Definition{def}, false, a.logger)
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Query name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newQueriesDeleteCommand(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a saved query by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.api.Delete(cmd.Context(), name)
			if err != nil {
				return err
			}
			a.logger.Printf("INFO query %s with id %s was deleted", name, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Query name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newQueriesInitCommand(a *app, use, short string, pick func(*queries.Catalogue) []queries.Definition) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := queries.Load()
			if err != nil {
				return err
			}
			summary, err := queries.Install(cmd.Context(), a.api, pick(cat), overwrite, a.logger)
			if err != nil {
				return err
			}
			a.logger.Printf("INFO %d queries created, %d failed", len(summary.Created), len(summary.Failed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Delete existing queries with the same name first")
	return cmd
}

func newRunTokenomicsCommand(a *app) *cobra.Command {
	var (
		only   []string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "run-tokenomics",
		Short: "Run the tokenomics queries and publish the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := a.newGenerator(cmd.Context(), verify)
			if err != nil {
				return err
			}
			items := reports.Filter(reports.TokenomicsCatalogue(), only)
			if len(items) == 0 {
				return fmt.Errorf("no tokenomics reports match %v", only)
			}
			return a.runReports(cmd.Context(), gen, items)
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only the named queries")
	cmd.Flags().BoolVar(&verify, "verify", false, "Read every published object back and compare it")
	return cmd
}

func newGenerateReportsCommand(a *app) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "generate-reports",
		Short: "Generate the game bank state reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := a.newGenerator(cmd.Context(), verify)
			if err != nil {
				return err
			}
			saved, err := a.api.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.runReports(cmd.Context(), gen, reports.BankItems(saved, time.Now()))
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Read every published object back and compare it")
	return cmd
}
