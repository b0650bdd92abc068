package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/aggregate"
	"github.com/renewpackages/renewapi/pkg/cache"
	"github.com/renewpackages/renewapi/pkg/storage"
)

// openDB opens the configured database, creating its directory when needed.
func openDB() (*storage.DB, string, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("could not create db directory: %w", err)
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	utils.Log.Debugf("Using database %s", path)
	return db, path, nil
}

func newEngine(db *storage.DB, c *cache.Cache) *aggregate.Engine {
	return aggregate.New(db, db, c,
		aggregate.WithLogger(utils.Log),
		aggregate.WithAggregateTTL(viper.GetDuration("cache.aggregate_ttl")),
		aggregate.WithListingTTL(viper.GetDuration("cache.listing_ttl")),
	)
}

// withDBLock runs fn while holding the write lock on the database file. Only
// CLI writers use it; serve does not.
func withDBLock(path string, fn func() error) error {
	lock, err := utils.NewDBLock(path)
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}
