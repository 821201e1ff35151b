package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/repository/memstore"
	"cimbrasys/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const seedYAML = `
autorizados:
  - Duena@Cimbra.test
lotes:
  - tipo: Tabla
    cantidad: 120
  - tipo: Barrote
    estado: Dañado
    cantidad: 4
    fecha: 2025-01-15T00:00:00Z
clientes:
  - nombre: Constructora Obrera
    telefono: "555-0101"
    proyecto: Torre Norte
`

func TestLeerSeed(t *testing.T) {
	f, err := leerSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"Duena@Cimbra.test"}, f.Autorizados)
	require.Len(t, f.Lotes, 2)
	assert.Equal(t, 120, f.Lotes[0].Cantidad)
	require.NotNil(t, f.Lotes[1].Fecha)
	assert.Equal(t, 2025, f.Lotes[1].Fecha.Year())
	require.Len(t, f.Clientes, 1)
	assert.Equal(t, "555-0101", f.Clientes[0].Telefono)
}

func TestLeerSeed_CampoDesconocido(t *testing.T) {
	_, err := leerSeed(strings.NewReader("lotes:\n  - tipo: Tabla\n    cantidd: 3\n"))
	assert.Error(t, err)
}

func TestLeerSeed_Vacio(t *testing.T) {
	f, err := leerSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Lotes)
}

func TestAplicarSeed(t *testing.T) {
	store := memstore.New()
	inv := service.NewInventarioService(store.Inventario(), store.AsignacionesRepo(), store.TxRunner(1))
	cli := service.NewClienteService(store.Clientes())
	ctx := context.Background()

	f, err := leerSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	res, err := aplicarSeed(ctx, f, store.Autenticados(), inv, cli)
	require.NoError(t, err)
	assert.Equal(t, resumenSeed{autorizados: 1, lotes: 2, clientes: 1}, res)

	_, err = store.Autenticados().FindByEmail(ctx, "duena@cimbra.test")
	assert.NoError(t, err)
	lotes, err := inv.Listar(ctx, dto.InventarioFilter{})
	require.NoError(t, err)
	require.Len(t, lotes, 2)
	assert.Equal(t, "CIM-0001", lotes[0].Codigo)
}

func TestAplicarSeed_LoteInvalidoSeDetiene(t *testing.T) {
	store := memstore.New()
	inv := service.NewInventarioService(store.Inventario(), store.AsignacionesRepo(), store.TxRunner(1))
	cli := service.NewClienteService(store.Clientes())

	f := &seedFile{Lotes: []seedLote{{Tipo: "Tabla", Cantidad: 1}, {Tipo: "Viga", Cantidad: 1}}}
	res, err := aplicarSeed(context.Background(), f, store.Autenticados(), inv, cli)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, 1, res.lotes)
}

func TestUpsertUsuario(t *testing.T) {
	store := memstore.New()
	cmd := newSeedUserCmd()
	cmd.SetContext(context.Background())

	creado, err := upsertUsuario(cmd, store.Usuarios(), "ana@example.com", "Ana", "contrasena-1")
	require.NoError(t, err)
	assert.True(t, creado)

	creado, err = upsertUsuario(cmd, store.Usuarios(), "ana@example.com", "", "contrasena-2")
	require.NoError(t, err)
	assert.False(t, creado)

	u, err := store.Usuarios().FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Nombre)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("contrasena-2")))

	_, err = upsertUsuario(cmd, store.Usuarios(), "ana@example.com", "", "corta")
	assert.Error(t, err)
}

func TestHashCmd(t *testing.T) {
	cmd := newHashCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"secreto123"})
	require.NoError(t, cmd.Execute())
	assert.NoError(t, bcrypt.CompareHashAndPassword(bytes.TrimSpace(out.Bytes()), []byte("secreto123")))
}
