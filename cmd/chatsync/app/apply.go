package app

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-chat-sync/internal/logging"
	"github.com/tbourn/go-chat-sync/internal/manifest"
)

func (a *App) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			closeDB(db)
			log.Info().Str("db_driver", a.cfg.DB.Driver).Msg("schema up to date")
			return nil
		},
	}
}

func (a *App) applyCommand() *cobra.Command {
	var (
		file        string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile stored state to a YAML manifest",
		Long: `apply reads a manifest of terms and chats (with their permission lists)
and converges the database to it. Applying the same manifest twice is a
no-op the second time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load(file)
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = a.cfg.ApplyConcurrency
			}

			ctx := cmd.Context()
			rt, err := a.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			lg := log.With().Str("manifest", file).Logger()
			rep, err := manifest.Apply(logging.WithLogger(ctx, &lg), rt.core, m, concurrency)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest file (YAML)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "chats reconciled in parallel (default APPLY_CONCURRENCY)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
