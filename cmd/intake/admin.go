package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ent0n29/intake/internal/catalog"
	"github.com/ent0n29/intake/internal/records"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the module catalog",
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog database and seed the default modules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		c, err := catalog.Open(cfg.CatalogDBPath)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Seed(cmd.Context(), catalog.DefaultItems); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.CatalogDBPath).Int("items", len(catalog.DefaultItems)).Msg("catalog seeded")
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the catalog contents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		c, err := catalog.Open(cfg.CatalogDBPath)
		if err != nil {
			return err
		}
		defer c.Close()

		items, err := c.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "catalog is empty; run: intake catalog init")
			return nil
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", it.ID, it.Description)
		}
		return nil
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Record database utilities",
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect to the record store and report its state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL (or DB_HOST) is not set; nothing to check")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := records.NewStore(ctx, cfg.DatabaseURL, cfg.StoreConnectAttempts)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		defer store.Close()

		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "record store reachable; schema is up to date")
		return nil
	},
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Administrative questionnaire operations",
}

var recordListStatus string

var recordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List questionnaires, newest first",
	Long:  "List questionnaires with their owners. Use --status \"\" to list every status.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL (or DB_HOST) is not set")
		}
		store, err := records.NewStore(cmd.Context(), cfg.DatabaseURL, cfg.StoreConnectAttempts)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.ListQuestionnaires(cmd.Context(), records.Status(recordListStatus))
		if err != nil {
			return err
		}
		printListings(cmd.OutOrStdout(), list)
		return nil
	},
}

func printListings(w io.Writer, list []records.Listing) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no questionnaires")
		return
	}
	for _, l := range list {
		name := strings.TrimSpace(l.User.FirstName + " " + l.User.LastName)
		if l.User.Username != "" {
			name = strings.TrimSpace(name + " @" + l.User.Username)
		}
		fmt.Fprintf(w, "%s  %-9s  %s  user %d  %s\n",
			l.ID, l.Status, l.CreatedAt.Format(time.RFC3339), l.User.ExternalID, name)
	}
}

var recordReviewCmd = &cobra.Command{
	Use:   "review <record-id>",
	Short: "Mark a completed questionnaire as reviewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL (or DB_HOST) is not set")
		}
		store, err := records.NewStore(cmd.Context(), cfg.DatabaseURL, cfg.StoreConnectAttempts)
		if err != nil {
			return err
		}
		defer store.Close()

		id := records.RecordID(args[0])
		switch err := store.MarkReviewed(cmd.Context(), id); {
		case errors.Is(err, records.ErrNotFound):
			return fmt.Errorf("record %s not found", id)
		case errors.Is(err, records.ErrNotReviewable):
			return fmt.Errorf("record %s is not completed", id)
		case err != nil:
			return err
		}
		logger.Info().Str("record_id", string(id)).Msg("questionnaire marked reviewed")
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogInitCmd, catalogListCmd)
	dbCmd.AddCommand(dbCheckCmd)
	recordListCmd.Flags().StringVar(&recordListStatus, "status", string(records.StatusCompleted), "only list records with this status (draft, completed, reviewed)")
	recordCmd.AddCommand(recordListCmd, recordReviewCmd)
}
