package infra

// pdf.go: printable documents rendered with go-pdf/fpdf.
//   - rental contract (one page per contract, lines and total)
//   - filtered contract listing
//   - income report with the monthly breakdown

import (
	"bytes"
	"fmt"
	"time"

	"cimbrasys/internal/dto"
	"cimbrasys/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const empresa = "CIMBRA-SYS"

var meses = [12]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

type documento struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	w   float64 // usable width
}

func nuevoDocumento(orientacion string) *documento {
	pdf := fpdf.New(orientacion, "mm", "Letter", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	// Core fonts are cp1252; the translator keeps ñ and accents intact.
	return &documento{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), w: pageW - 30}
}

func (d *documento) encabezado(titulo, subtitulo string) {
	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.CellFormat(d.w, 8, empresa, "", 1, "C", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 11)
	d.pdf.CellFormat(d.w, 6, d.tr(titulo), "", 1, "C", false, 0, "")
	if subtitulo != "" {
		d.pdf.SetFont("Helvetica", "", 9)
		d.pdf.CellFormat(d.w, 5, d.tr(subtitulo), "", 1, "C", false, 0, "")
	}
	d.pdf.Ln(4)
}

func (d *documento) campo(etiqueta, valor string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(45, 6, d.tr(etiqueta), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.CellFormat(d.w-45, 6, d.tr(valor), "", 1, "L", false, 0, "")
}

// fila writes one table row; widths are fractions of the usable width.
func (d *documento) fila(cols []float64, valores []string, aligns string, bold bool, borde string) {
	estilo := ""
	if bold {
		estilo = "B"
	}
	d.pdf.SetFont("Helvetica", estilo, 9)
	for i, v := range valores {
		ln := 0
		if i == len(valores)-1 {
			ln = 1
		}
		d.pdf.CellFormat(d.w*cols[i], 6, d.tr(v), borde, ln, string(aligns[i]), false, 0, "")
	}
}

func (d *documento) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func moneda(v decimal.Decimal) string { return "$" + v.StringFixed(2) }

func fecha(t time.Time) string { return t.Format("02/01/2006") }

// GenerarContratoPDF renders the printable rental contract.
func GenerarContratoPDF(c *model.Contrato) ([]byte, error) {
	d := nuevoDocumento("P")
	d.encabezado("Contrato de renta de madera para cimbra", "Contrato "+c.Numero)

	d.campo("Cliente:", c.ClienteNombre)
	d.campo("Telefono:", c.ClienteTelefono)
	d.campo("Proyecto:", c.Proyecto)
	d.campo("Fecha de inicio:", fecha(c.FechaInicio))
	d.campo("Fecha de devolucion:", fecha(c.FechaDevolucion))
	d.campo("Estado:", c.Estado)
	d.pdf.Ln(4)

	cols := []float64{0.40, 0.20, 0.20, 0.20}
	d.fila(cols, []string{"Material", "Cantidad", "Precio unitario", "Subtotal"}, "LCRR", true, "B")
	for _, m := range c.Materiales {
		d.fila(cols, []string{m.TipoMaterial, fmt.Sprintf("%d", m.Cantidad), moneda(m.PrecioUnitario), moneda(m.Subtotal())}, "LCRR", false, "")
	}
	d.pdf.Ln(2)
	d.fila([]float64{0.80, 0.20}, []string{"TOTAL", moneda(c.CostoTotal)}, "RR", true, "T")

	d.pdf.Ln(20)
	mitad := d.w / 2
	d.pdf.SetFont("Helvetica", "", 9)
	d.pdf.CellFormat(mitad, 5, "______________________________", "", 0, "C", false, 0, "")
	d.pdf.CellFormat(mitad, 5, "______________________________", "", 1, "C", false, 0, "")
	d.pdf.CellFormat(mitad, 5, d.tr("Arrendador"), "", 0, "C", false, 0, "")
	d.pdf.CellFormat(mitad, 5, d.tr(c.ClienteNombre), "", 1, "C", false, 0, "")

	return d.bytes()
}

// GenerarListadoPDF renders a table of contracts with a total row.
func GenerarListadoPDF(titulo string, contratos []model.Contrato) ([]byte, error) {
	d := nuevoDocumento("L")
	d.encabezado(titulo, fmt.Sprintf("%d contratos, generado el %s", len(contratos), fecha(time.Now())))

	cols := []float64{0.14, 0.22, 0.22, 0.12, 0.12, 0.08, 0.10}
	d.fila(cols, []string{"Numero", "Cliente", "Proyecto", "Inicio", "Devolucion", "Estado", "Total"}, "LLLCCCR", true, "B")
	total := decimal.Zero
	for _, c := range contratos {
		d.fila(cols, []string{
			c.Numero, c.ClienteNombre, c.Proyecto,
			fecha(c.FechaInicio), fecha(c.FechaDevolucion), c.Estado, moneda(c.CostoTotal),
		}, "LLLCCCR", false, "")
		total = total.Add(c.CostoTotal)
	}
	d.pdf.Ln(2)
	d.fila([]float64{0.90, 0.10}, []string{"TOTAL", moneda(total)}, "RR", true, "T")

	return d.bytes()
}

// GenerarReportePDF renders the income summary and its monthly breakdown.
func GenerarReportePDF(r *dto.ReporteResponse) ([]byte, error) {
	d := nuevoDocumento("P")
	rango := "Todos los contratos"
	if r.Desde != "" || r.Hasta != "" {
		rango = fmt.Sprintf("Del %s al %s", valorO(r.Desde, "inicio"), valorO(r.Hasta, "hoy"))
	}
	d.encabezado("Reporte de ingresos", rango)

	d.campo("Ingreso total:", moneda(r.IngresoTotal))
	d.campo("Contratos:", fmt.Sprintf("%d", r.TotalContratos))
	d.campo("Contratos activos:", fmt.Sprintf("%d", r.ContratosActivos))
	d.campo("Unidades rentadas:", fmt.Sprintf("%d", r.UnidadesRentadas))
	d.pdf.Ln(4)

	cols := []float64{0.5, 0.5}
	d.fila(cols, []string{"Mes", "Ingreso"}, "LR", true, "B")
	for i, v := range r.Mensual {
		d.fila(cols, []string{meses[i], moneda(v)}, "LR", false, "")
	}
	return d.bytes()
}

func valorO(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
