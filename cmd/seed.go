/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foodmap/apiserver/config"
	"github.com/foodmap/apiserver/internal/db"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

// seedCmd represents the seed command. It writes the fixed role set the
// application expects; running it twice is harmless.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the fixed roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		database, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database failed: %w", err)
		}
		defer func() {
			_ = database.Close(cmd.Context())
		}()

		roles := store.NewRoleRepository(database)
		for _, role := range []types.Role{
			{RoleID: types.RoleUser, RoleName: "User"},
			{RoleID: types.RoleAdmin, RoleName: "Admin"},
		} {
			if err := roles.Upsert(cmd.Context(), role); err != nil {
				return fmt.Errorf("seed role %q failed: %w", role.RoleName, err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
