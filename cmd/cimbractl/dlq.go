package main

import (
	"fmt"

	"cimbrasys/internal/config"
	"cimbrasys/internal/infra"
	"cimbrasys/internal/worker"

	"github.com/spf13/cobra"
)

func newDLQCmd() *cobra.Command {
	var queue string
	var n int
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspecciona y reencola trabajos fallidos",
	}
	cmd.PersistentFlags().StringVar(&queue, "queue", worker.QueueEmail, "cola de origen")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Cantidad de trabajos en la cola de fallidos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rdb, err := infra.NewRedis(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()
			total, err := worker.DLQLength(cmd.Context(), rdb, queue)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s: %d\n", worker.DLQPrefix, queue, total)
			return nil
		},
	}
	retry := &cobra.Command{
		Use:   "retry",
		Short: "Devuelve trabajos fallidos a su cola",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rdb, err := infra.NewRedis(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()
			movidos, err := worker.Reencolar(cmd.Context(), rdb, queue, n)
			fmt.Fprintf(cmd.OutOrStdout(), "%d trabajos reencolados en %s\n", movidos, queue)
			return err
		},
	}
	retry.Flags().IntVarP(&n, "n", "n", 100, "maximo de trabajos a mover")
	cmd.AddCommand(stats, retry)
	return cmd
}
