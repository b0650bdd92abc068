package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/renewpackages/renewapi/internal/server"
	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/auth"
	"github.com/renewpackages/renewapi/pkg/brands"
	"github.com/renewpackages/renewapi/pkg/cache"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		authSvc := auth.New(db,
			auth.WithLogger(utils.Log),
			auth.WithTokenTTL(viper.GetDuration("auth.token_ttl")),
		)
		if _, err := authSvc.SeedAdmin(ctx, viper.GetString("admin.username"), viper.GetString("admin.password")); err != nil {
			return err
		}
		if interval := viper.GetDuration("auth.prune_interval"); interval > 0 {
			go authSvc.RunJanitor(ctx, interval)
		}

		c := cache.New()
		srv := server.New(
			newEngine(db, c),
			brands.New(db, c, brands.WithLogger(utils.Log), brands.WithListingTTL(viper.GetDuration("cache.listing_ttl"))),
			authSvc,
		)
		return srv.Start(ctx, viper.GetString("server.listen"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":5000", "HTTP listen address")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}
