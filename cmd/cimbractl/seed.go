package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/repository"
	"cimbrasys/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by `cimbractl seed`.
type seedFile struct {
	Autorizados []string      `yaml:"autorizados"`
	Lotes       []seedLote    `yaml:"lotes"`
	Clientes    []seedCliente `yaml:"clientes"`
}

type seedLote struct {
	Tipo     string     `yaml:"tipo"`
	Estado   string     `yaml:"estado"`
	Cantidad int        `yaml:"cantidad"`
	Fecha    *time.Time `yaml:"fecha"`
}

type seedCliente struct {
	Nombre    string  `yaml:"nombre"`
	Telefono  string  `yaml:"telefono"`
	Direccion *string `yaml:"direccion"`
	Proyecto  string  `yaml:"proyecto"`
}

func leerSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("seed: %w", err)
	}
	return &f, nil
}

type resumenSeed struct{ autorizados, lotes, clientes int }

// aplicarSeed loads the file through the services so the same validation
// as the API applies. It stops at the first invalid entry.
func aplicarSeed(ctx context.Context, f *seedFile, allow repository.AutenticadoRepository,
	inv service.InventarioService, cli service.ClienteService) (resumenSeed, error) {
	var res resumenSeed
	for _, email := range f.Autorizados {
		if err := allow.Add(ctx, email); err != nil {
			return res, fmt.Errorf("autorizado %s: %w", email, err)
		}
		res.autorizados++
	}
	for i, l := range f.Lotes {
		_, err := inv.Registrar(ctx, dto.CrearLoteRequest{
			TipoMaterial:  l.Tipo,
			Estado:        l.Estado,
			Cantidad:      l.Cantidad,
			FechaRegistro: l.Fecha,
		})
		if err != nil {
			return res, fmt.Errorf("lote %d: %w", i+1, err)
		}
		res.lotes++
	}
	for i, c := range f.Clientes {
		_, err := cli.Crear(ctx, dto.ClienteRequest{
			Nombre:    c.Nombre,
			Telefono:  c.Telefono,
			Direccion: c.Direccion,
			Proyecto:  c.Proyecto,
		})
		if err != nil {
			return res, fmt.Errorf("cliente %d: %w", i+1, err)
		}
		res.clientes++
	}
	return res, nil
}

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Carga lotes, clientes y autorizados iniciales desde un YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fh, err := os.Open(path)
			if err != nil {
				return err
			}
			defer fh.Close()
			f, err := leerSeed(fh)
			if err != nil {
				return err
			}

			cfg, db, err := conectar()
			if err != nil {
				return err
			}
			inv := service.NewInventarioService(repository.NewInventarioRepository(db), repository.NewAsignacionRepository(db),
				repository.NewTxRunner(db, cfg.TxMaxRetries))
			cli := service.NewClienteService(repository.NewClienteRepository(db))
			res, err := aplicarSeed(cmd.Context(), f, repository.NewAutenticadoRepository(db), inv, cli)
			fmt.Fprintf(cmd.OutOrStdout(), "autorizados: %d, lotes: %d, clientes: %d\n", res.autorizados, res.lotes, res.clientes)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "seed.yaml", "archivo YAML")
	return cmd
}
