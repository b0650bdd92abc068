package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/cache"
	"github.com/renewpackages/renewapi/pkg/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv|file.json>",
	Short: "Replace all data with the rows of an Excel, CSV or JSON export",
	Long: `Replaces every entry with the rows of the given file and wipes all configured
percentages. Workbooks are read from their first sheet. Excel and CSV files need a
header row naming B1, B2, B3 and optionally B3的詳細資料.
Rows missing B1, B2 or B3 are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := decodeFile(args[0])
		if err != nil {
			return err
		}

		db, path, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withDBLock(path, func() error {
			if err := newEngine(db, cache.New()).ReplaceAllEntries(context.Background(), res.Entries); err != nil {
				return err
			}
			if res.Skipped > 0 {
				utils.Log.Warnf("Skipped %d rows missing B1, B2 or B3", res.Skipped)
			}
			utils.Log.Infof("Imported %d entries from %s", len(res.Entries), args[0])
			return nil
		})
	},
}

func decodeFile(name string) (importer.Result, error) {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		data, err := os.ReadFile(name)
		if err != nil {
			return importer.Result{}, err
		}
		return importer.DecodeJSON(data)
	}

	f, err := os.Open(name)
	if err != nil {
		return importer.Result{}, err
	}
	defer f.Close()
	res, err := importer.DecodeUpload(name, f)
	if err != nil {
		return importer.Result{}, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
