package main

import (
	"errors"
	"fmt"

	"cimbrasys/internal/model"
	"cimbrasys/internal/repository"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <password>",
		Short: "Imprime el hash bcrypt de una contrasena",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcryptCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(h))
			return nil
		},
	}
}

func newSeedUserCmd() *cobra.Command {
	var email, nombre, password string
	var autorizar bool
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Crea o actualiza un usuario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := conectar()
			if err != nil {
				return err
			}
			usuarios := repository.NewUsuarioRepository(db)
			creado, err := upsertUsuario(cmd, usuarios, email, nombre, password)
			if err != nil {
				return err
			}
			accion := "actualizado"
			if creado {
				accion = "creado"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "usuario %s %s\n", email, accion)

			if autorizar {
				if err := repository.NewAutenticadoRepository(db).Add(cmd.Context(), email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s agregado a la lista de autorizados\n", email)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "correo del usuario")
	cmd.Flags().StringVar(&nombre, "nombre", "", "nombre a mostrar")
	cmd.Flags().StringVar(&password, "password", "", "contrasena en texto plano")
	cmd.Flags().BoolVar(&autorizar, "allow", false, "agregar tambien a la lista de autorizados")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// upsertUsuario reports whether the user was created (true) or updated.
func upsertUsuario(cmd *cobra.Command, repo repository.UsuarioRepository, email, nombre, password string) (bool, error) {
	if len(password) < 8 {
		return false, errors.New("la contrasena debe tener al menos 8 caracteres")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return false, err
	}
	ctx := cmd.Context()
	u, err := repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if nombre == "" {
			nombre = email
		}
		return true, repo.Create(ctx, &model.Usuario{Email: email, Nombre: nombre, PasswordHash: string(hash), Activo: true})
	case err != nil:
		return false, err
	}
	u.PasswordHash = string(hash)
	if nombre != "" {
		u.Nombre = nombre
	}
	return false, repo.Update(ctx, u)
}
