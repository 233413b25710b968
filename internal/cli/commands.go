package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crboard/internal/changerequest/importer"
	"crboard/internal/changerequest/service"
	"crboard/internal/platform/writetoken"
)

func newImportCommand(v *viper.Viper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create change requests from a JSON or CSV export",
		Long: `Read spreadsheet rows from FILE and create one change request per row.

Headers are matched loosely ("CR ID", "Cr Id" and "cr_id" all name the crId),
dates may be ISO, dd/mm/yyyy or spreadsheet serial numbers. Rows that fail are
reported with their row number; the command exits non-zero if any row failed.

Examples:
  crctl import overall.csv --store sqlite --sqlite-path crboard.db
  crctl import rows.json | jq '.failed'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f := importer.Format(format)
			if format == "" {
				var err error
				if f, err = importer.FormatOf(path); err != nil {
					return err
				}
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer func() { _ = file.Close() }()

			records, err := importer.Read(file, f)
			if err != nil {
				return err
			}

			s, ctx, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.app.Service.Import(ctx, importer.MapAll(records))
			if err := s.printJSON(res); err != nil {
				return err
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d rows failed", len(res.Failed), len(records))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: json or csv (default: from the file extension)")
	return cmd
}

func newListCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list SYSTEM",
		Short: "List the change requests filed under a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ctx, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.Close()

			crs, err := s.app.Service.List(ctx, args[0])
			if err != nil {
				return err
			}
			return s.printJSON(crs)
		},
	}
}

func newGetCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the whole registry document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, ctx, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.Close()

			reg, err := s.app.Service.GetAll(ctx)
			if err != nil {
				return err
			}
			return s.printJSON(reg)
		},
	}
}

func newDashboardCommand(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show CR counts per system and per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, ctx, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.app.Service.Dashboard(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return s.printJSON(d)
			}
			_, err = fmt.Fprintln(s.out, renderDashboard(d))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")
	return cmd
}

func newSeedCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Initialize an empty store with the bootstrap document",
		Long: `Force the first load of the registry. An empty store is written with the
bootstrap document (or --seed-file); a store that already holds a document is
left unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, ctx, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.Close()

			reg, err := s.app.Service.GetAll(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(s.out, "registry ready on %s: %d change requests in %d systems\n",
				s.cfg.Store.Backend, reg.Len(), len(reg.Systems))
			return err
		},
	}
}

func newDeleteCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CRID",
		Short: "Remove a change request",
		Long:  `Remove the change request with the given id. Deleting an id that is not stored fails with not found and changes nothing.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ctx, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = service.RetryOnConflict(ctx, s.retries, func() (struct{}, error) {
				return struct{}{}, s.app.Service.Delete(ctx, args[0])
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(s.out, "deleted %s\n", args[0])
			return err
		},
	}
}

func newTokenCommand(v *viper.Viper) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a write token for the HTTP API",
		Long: `Sign a bearer token that authorizes mutations against a server started with
the same CRBOARD_WRITE_SECRET. The subject is recorded as the actor of every
change made with the token.

Examples:
  crctl token --subject ops-team --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := writetoken.New(v.GetString("write_secret"))
			if err != nil {
				return err
			}
			token, err := signer.Issue(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "caller the token names")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 never expires")
	cmd.Flags().String("write-secret", "", "signing secret (default: $CRBOARD_WRITE_SECRET)")
	_ = v.BindPFlag("write_secret", cmd.Flags().Lookup("write-secret"))
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
