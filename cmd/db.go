package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/cache"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the renewapi database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := utils.GetAbsDBPath(viper.GetString("db.path"))
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints row counts and the number of entries per B1 value.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		counts, err := db.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Entries: %d\nConfigured percentages: %d\nPhone brands: %d\n", counts.Entries, counts.Overrides, counts.Brands)

		if counts.Entries == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		perB1, err := db.EntryCountsByB1(ctx)
		if err != nil {
			return err
		}

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "B1\tENTRIES\t")
		for _, vc := range perB1 {
			fmt.Fprintf(w, "%s\t%d\t\n", vc.Value, vc.Count)
		}
		fmt.Fprintln(w, " \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t\n", counts.Entries)
		w.Flush()

		return nil
	},
}

var clearOverridesCmd = &cobra.Command{
	Use:   "clear-overrides",
	Short: "Delete every configured percentage",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, path, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withDBLock(path, func() error {
			return newEngine(db, cache.New()).ClearAllOverrides(context.Background())
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Drop and recreate the configured percentage table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, path, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withDBLock(path, func() error {
			return newEngine(db, cache.New()).MigrateOverrides(context.Background())
		})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(clearOverridesCmd)
	dbCmd.AddCommand(migrateCmd)
}
