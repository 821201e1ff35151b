package main

import (
	"fmt"

	"cimbrasys/internal/config"
	"cimbrasys/internal/infra"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cimbractl",
		Short:         "Administracion de CIMBRA-SYS",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newHashCmd(),
		newSeedUserCmd(),
		newAllowCmd(),
		newSeedCmd(),
		newDLQCmd(),
	)
	return root
}

// conectar loads config from the environment and opens the database.
func conectar() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	return cfg, db, nil
}
