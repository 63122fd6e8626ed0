package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strikemap-systems/strikemap/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.URL == "" {
			return errors.New("no database configured (set database.url or STRIKEMAP_DATABASE_URL)")
		}
		if err := repository.Migrate(cfg.Database.URL); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
