package database

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunSeeds applies every database/seeds/*.sql in lexical order inside one transaction.
// Seeds must be re-runnable (ON CONFLICT DO NOTHING).
func RunSeeds(db *gorm.DB, log *zap.Logger) error {
	dir, ok := locateDir("seeds")
	if !ok {
		return fmt.Errorf("seeds dir not found (tried database/seeds)")
	}
	seeds := os.DirFS(dir)
	files, err := fs.Glob(seeds, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	return db.Transaction(func(tx *gorm.DB) error {
		for _, name := range files {
			body, err := fs.ReadFile(seeds, name)
			if err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
			res := tx.Exec(string(body))
			if res.Error != nil {
				return fmt.Errorf("seed %s: %w", name, res.Error)
			}
			log.Info("seed applied", zap.String("file", path.Base(name)), zap.Int64("rows", res.RowsAffected))
		}
		return nil
	})
}
