// Package mailtmpl renders the transactional emails sent by the pipeline.
package mailtmpl

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/storefront-pipeline/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

type Renderer struct {
	baseURL  string
	currency string
	printer  *message.Printer
	tmpl     *template.Template
}

func New(baseURL, currencySymbol string) *Renderer {
	r := &Renderer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: currencySymbol,
		printer:  message.NewPrinter(language.English),
	}
	r.tmpl = template.Must(template.New("mail").Funcs(template.FuncMap{
		"money": r.Money,
		"title": titleCase,
	}).Parse(templates))
	return r
}

// Money formats m with two decimals, grouped thousands and the currency symbol.
func (r *Renderer) Money(m domain.Money) string {
	d := m.Decimal.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0)
	cents := d.Sub(whole).Mul(decimal.NewFromInt(100)).IntPart()
	return fmt.Sprintf("%s%s%s.%02d", sign, r.currency, r.groupWhole(whole), cents)
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// groupWhole formats a non-negative integral amount with grouped thousands.
// Amounts beyond int64 are grouped from their decimal string.
func (r *Renderer) groupWhole(whole decimal.Decimal) string {
	if whole.LessThanOrEqual(maxInt64) {
		return r.printer.Sprintf("%d", whole.IntPart())
	}
	digits := whole.String()
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// titleCase builds a fresh Caser per call; a Caser must not be shared
// between goroutines.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// ProductURL is the storefront page of productID.
func (r *Renderer) ProductURL(productID string) string {
	return r.baseURL + "/product/" + productID
}

// Stars renders a 1..5 rating as filled and empty glyphs, e.g. ★★★★☆.
func Stars(rating int) string {
	rating = max(0, min(rating, 5))
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func (r *Renderer) BackInStock(p *domain.Product) (Message, error) {
	html, err := r.render("back_in_stock", struct {
		Name  string
		Price domain.Money
		URL   string
	}{p.Name, effectivePrice(p), r.ProductURL(p.ProductID)})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: "Back in stock: " + p.Name, HTML: html}, nil
}

// effectivePrice is the offer price when one is set, otherwise the list price.
func effectivePrice(p *domain.Product) domain.Money {
	if p.OfferPrice.IsPositive() {
		return p.OfferPrice
	}
	return p.Price
}

type OrderLine struct {
	Name      string
	Quantity  int
	LineTotal domain.Money
}

type OrderSummary struct {
	Reference string
	Lines     []OrderLine
	Address   *domain.Address
	Total     domain.Money
}

func (r *Renderer) OrderConfirmation(s OrderSummary) (Message, error) {
	html, err := r.render("order_confirmation", s)
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: "Your order has been placed", HTML: html}, nil
}

type ReviewNotice struct {
	ProductID   string
	ProductName string
	Author      string
	Rating      int
	Comment     string
}

func (r *Renderer) ReviewAdded(n ReviewNotice) (Message, error) {
	html, err := r.render("review_added", struct {
		ReviewNotice
		Stars string
		URL   string
	}{n, Stars(n.Rating), r.ProductURL(n.ProductID)})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: fmt.Sprintf("New %d-star review on %s", n.Rating, n.ProductName), HTML: html}, nil
}

func (r *Renderer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

const templates = `
{{define "back_in_stock"}}<p>Good news! <strong>{{.Name}}</strong> is available again for {{money .Price}}.</p>
<p><a href="{{.URL}}">View product</a></p>{{end}}

{{define "order_confirmation"}}<p>Thank you for your order{{with .Reference}} <strong>{{.}}</strong>{{end}}.</p>
<table>
<tr><th align="left">Item</th><th>Qty</th><th align="right">Total</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{money .LineTotal}}</td></tr>
{{end}}<tr><td colspan="2"><strong>Grand total</strong></td><td align="right"><strong>{{money .Total}}</strong></td></tr>
</table>
{{with .Address}}<p>Shipping to:<br>{{.FullName}}<br>{{.Area}}<br>{{title .City}}, {{title .State}} {{.PinCode}}<br>{{.PhoneNumber}}</p>{{end}}{{end}}

{{define "review_added"}}<p><strong>{{.Author}}</strong> rated <a href="{{.URL}}">{{.ProductName}}</a> {{.Stars}}</p>
{{with .Comment}}<blockquote>{{.}}</blockquote>{{end}}{{end}}
`
