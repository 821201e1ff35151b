package infra

import (
	"encoding/csv"
	"io"
	"strconv"

	"cimbrasys/internal/model"
)

var encabezadoCSV = []string{
	"numero", "cliente", "telefono", "proyecto", "fecha_inicio",
	"fecha_devolucion", "estado", "materiales", "costo_total",
}

// ExportarContratosCSV writes one row per contract. The UTF-8 BOM makes
// spreadsheet programs read accents correctly.
func ExportarContratosCSV(w io.Writer, contratos []model.Contrato) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(encabezadoCSV); err != nil {
		return err
	}
	for _, c := range contratos {
		unidades := 0
		for _, m := range c.Materiales {
			unidades += m.Cantidad
		}
		if err := cw.Write([]string{
			c.Numero,
			c.ClienteNombre,
			c.ClienteTelefono,
			c.Proyecto,
			c.FechaInicio.Format("2006-01-02"),
			c.FechaDevolucion.Format("2006-01-02"),
			c.Estado,
			strconv.Itoa(unidades),
			c.CostoTotal.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
