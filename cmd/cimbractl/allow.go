package main

import (
	"fmt"

	"cimbrasys/internal/repository"

	"github.com/spf13/cobra"
)

func newAllowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allow",
		Short: "Mantenimiento de la lista de correos autorizados",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <email>...",
			Short: "Autoriza uno o mas correos",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				repo, err := autenticados()
				if err != nil {
					return err
				}
				for _, email := range args {
					if err := repo.Add(cmd.Context(), email); err != nil {
						return fmt.Errorf("%s: %w", email, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "+ %s\n", email)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <email>...",
			Short: "Retira la autorizacion; las sesiones abiertas se cierran en su siguiente solicitud",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				repo, err := autenticados()
				if err != nil {
					return err
				}
				for _, email := range args {
					if err := repo.Remove(cmd.Context(), email); err != nil {
						return fmt.Errorf("%s: %w", email, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", email)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Lista los correos autorizados",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				repo, err := autenticados()
				if err != nil {
					return err
				}
				rows, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, a := range rows {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", a.Email, a.CreatedAt.Format("2006-01-02"))
				}
				return nil
			},
		},
	)
	return cmd
}

func autenticados() (repository.AutenticadoRepository, error) {
	_, db, err := conectar()
	if err != nil {
		return nil, err
	}
	return repository.NewAutenticadoRepository(db), nil
}
