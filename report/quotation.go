package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Company is the letterhead printed on customer documents.
type Company struct {
	Name  string `json:"nombre"`
	TaxID string `json:"nit"`
}

// DocumentLine is one row of the quotation table.
type DocumentLine struct {
	ProductID   int64   `json:"producto_id"`
	ProductName string  `json:"nombre"`
	Quantity    int     `json:"cantidad"`
	UnitPrice   float64 `json:"precio_unitario"`
	BaseUnit    float64 `json:"precio_base"`
	TaxUnit     float64 `json:"impuesto"`
	Subtotal    float64 `json:"subtotal"`
}

// QuotationDocument is everything the printed quotation shows.
type QuotationDocument struct {
	Company     Company        `json:"empresa"`
	Number      int64          `json:"numero"`
	ClientID    int64          `json:"cliente_id"`
	ClientEmail string         `json:"cliente_email,omitempty"`
	IssuedAt    time.Time      `json:"fecha_creacion"`
	ValidUntil  time.Time      `json:"fecha_vigencia"`
	Validity    string         `json:"estado_vigencia"`
	Lines       []DocumentLine `json:"lineas"`
	BaseTotal   float64        `json:"subtotal_base"`
	TaxTotal    float64        `json:"impuesto_total"`
	Discount    float64        `json:"descuento"`
	Total       float64        `json:"total"`
	Legal       string         `json:"condiciones"`
}

// DefaultLegalNotice is appended to every quotation.
const DefaultLegalNotice = "Precios en pesos colombianos con IVA del 19% incluido. " +
	"La cotización no reserva inventario y está sujeta a disponibilidad al momento del pedido. " +
	"Válida hasta la fecha indicada."

var printer = message.NewPrinter(language.MustParse("es-CO"))

func money(v float64) string {
	return printer.Sprintf("$ %.2f", v)
}

var quotationTemplate = template.Must(template.New("quotation").Funcs(template.FuncMap{
	"money": money,
	"date":  func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(`<!doctype html>
<html lang="es"><head><meta charset="utf-8"><title>Cotización {{.Number}}</title>
<style>
body{font-family:sans-serif;font-size:12px}
table{width:100%;border-collapse:collapse}
th,td{border-bottom:1px solid #ccc;padding:4px;text-align:left}
td.num,th.num{text-align:right}
</style></head><body>
<h1>{{.Company.Name}}</h1>
<p>NIT {{.Company.TaxID}}</p>
<h2>Cotización N.º {{.Number}}</h2>
<p>Cliente {{.ClientID}}{{if .ClientEmail}} ({{.ClientEmail}}){{end}}<br>
Emitida {{date .IssuedAt}} · Vigente hasta {{date .ValidUntil}} · {{.Validity}}</p>
<table>
<thead><tr><th>Producto</th><th class="num">Cantidad</th><th class="num">Precio base</th><th class="num">IVA</th><th class="num">Precio unitario</th><th class="num">Subtotal</th></tr></thead>
<tbody>
{{range .Lines}}<tr><td>{{.ProductName}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money .BaseUnit}}</td><td class="num">{{money .TaxUnit}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .Subtotal}}</td></tr>
{{end}}</tbody>
</table>
<table>
<tr><td>Subtotal sin IVA</td><td class="num">{{money .BaseTotal}}</td></tr>
<tr><td>IVA</td><td class="num">{{money .TaxTotal}}</td></tr>
<tr><td>Descuento</td><td class="num">{{money .Discount}}</td></tr>
<tr><th>Total</th><th class="num">{{money .Total}}</th></tr>
</table>
<p><small>{{.Legal}}</small></p>
</body></html>
`))

// QuotationHTML renders doc with the built-in quotation layout.
func QuotationHTML(doc QuotationDocument) (string, error) {
	if doc.Legal == "" {
		doc.Legal = DefaultLegalNotice
	}
	var buf bytes.Buffer
	if err := quotationTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("report: render quotation: %w", err)
	}
	return buf.String(), nil
}
