// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olegiv/ocms-l10n/internal/config"
	"github.com/olegiv/ocms-l10n/internal/datahandler"
	"github.com/olegiv/ocms-l10n/internal/store"
	"github.com/olegiv/ocms-l10n/internal/transfer"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		doSeed, _ := cmd.Flags().GetBool("seed")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Database ready: %s\n", a.cfg.DBPath)
		if !doSeed {
			return nil
		}
		uid, err := a.seed(cmd.Context())
		if err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
		if uid != 0 {
			fmt.Printf("Root page: %d\n", uid)
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Apply a YAML batch of a data map and a command map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := datahandler.ParseBatchFile(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.dataHandler.Process(cmd.Context(), batch.Data, batch.Cmd)

		placeholders := make([]string, 0, len(res.Substitutions))
		for p := range res.Substitutions {
			placeholders = append(placeholders, p)
		}
		slices.Sort(placeholders)
		for _, p := range placeholders {
			fmt.Printf("%s -> %d\n", p, res.Substitutions[p])
		}
		for k, uid := range res.Localized {
			fmt.Printf("%s localized as %d\n", k, uid)
		}
		fmt.Printf("%d inserted, %d updated, %d localized\n",
			len(res.Inserted), len(res.Updated), len(res.Localized))

		if res.Failed() {
			for _, msg := range res.ErrorLog() {
				_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", msg)
			}
			return fmt.Errorf("batch failed with %d errors", len(res.Errors()))
		}
		return nil
	},
}

var localizeCmd = &cobra.Command{
	Use:   "localize TABLE UID LANG",
	Short: "Localize a record and its subtree",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid uid %q", args[1])
		}
		lang, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid language %q", args[2])
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.engine.LocalizeDetailed(cmd.Context(), args[0], uid, lang)
		if err != nil {
			return err
		}
		fmt.Printf("%s:%d -> %d (%d created, %d updated)\n",
			args[0], uid, out.UID, len(out.Created), len(out.Updated))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a localization XML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgUID, _ := cmd.Flags().GetInt64("config")
		lang, _ := cmd.Flags().GetInt64("lang")
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := transfer.LoadConfiguration(cmd.Context(), a.store, a.reg, cfgUID)
		if err != nil {
			return err
		}
		if output == "" {
			return a.exporter.ExportToWriter(cmd.Context(), cfg, lang, os.Stdout)
		}
		if err := a.exporter.ExportToFile(cmd.Context(), cfg, lang, output); err != nil {
			return err
		}
		fmt.Printf("Exported configuration %d to %s\n", cfgUID, output)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a translated localization XML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetInt64("lang")
		opts := transfer.DefaultImportOptions()
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.LocalizeParents, _ = cmd.Flags().GetBool("localize-parents")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.importer.ImportFromFile(cmd.Context(), args[0], lang, opts)
		if err != nil {
			return err
		}
		fmt.Println(result.Summary())
		if !result.Success {
			for _, e := range result.Errors {
				_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", e.Error())
			}
			return fmt.Errorf("import failed with %d errors", len(result.Errors))
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the newest warnings and errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt64("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := store.New(a.db).ListSysLog(cmd.Context(), store.ListSysLogParams{Limit: limit})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No log entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s %-7s %-11s %s %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Level, e.Category, e.Message, e.Metadata)
		}
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the relation schema as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		reg, err := loadSchema(cfg)
		if err != nil {
			return err
		}
		return reg.Marshal(os.Stdout)
	},
}
