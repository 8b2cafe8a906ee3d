// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command ocms-l10n manages records and their translations: it applies
// data and command map batches, localizes record trees and exchanges
// localization XML files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/olegiv/ocms-l10n/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ocms-l10n",
	Short: "Record localization engine",
	Long: `ocms-l10n stores records with parent and child relations and localizes
whole record trees into the languages of a site.

Environment Variables:
  OCMS_L10N_DB_DRIVER     sqlite (pure Go, default) or sqlite3 (cgo)
  OCMS_L10N_DB_PATH       SQLite database path (default: ./data/ocms-l10n.db)
  OCMS_L10N_LOG_LEVEL     debug|info|warn|error (default: info)
  OCMS_L10N_SCHEMA_PATH   Relation schema YAML (default: built-in)
  OCMS_L10N_SITE_PATH     Site YAML with languages (default: en + de)
  OCMS_L10N_REDIS_URL     Redis URL for locking across processes (optional)`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Info{
			Version:   appVersion,
			GitCommit: appGitCommit,
			BuildTime: appBuildTime,
		}
		fmt.Println(info.Banner("ocms-l10n"))
	},
}

func init() {
	migrateCmd.Flags().Bool("seed", false, "create the root page if the database is empty")

	exportCmd.Flags().Int64("config", 0, "uid of the tx_l10nmgr_cfg record")
	exportCmd.Flags().Int64("lang", 1, "target language id")
	exportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	_ = exportCmd.MarkFlagRequired("config")

	importCmd.Flags().Int64("lang", 1, "target language id")
	importCmd.Flags().Bool("dry-run", false, "validate and count without writing")
	importCmd.Flags().Bool("localize-parents", false, "localize each element from its top-most configured ancestor")

	logCmd.Flags().Int64("limit", 20, "number of entries")

	rootCmd.AddCommand(migrateCmd, applyCmd, localizeCmd, exportCmd, importCmd, logCmd, schemaCmd, versionCmd)
}
