package escpos

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"receipt-print-gateway/internal/model"
)

// Fixed receipt labels.
const (
	LabelOperator = "Operador: "
	LabelATCUD    = "ATCUD: "
	LabelSubtotal = "Subtotal"
	LabelTax      = "IVA"
	LabelTotal    = "TOTAL"
	ThankYouLine  = "Obrigado pela preferencia"

	// DefaultTestTitle is used when a test print request carries no title.
	DefaultTestTitle = "Teste Print Gateway"

	trailingFeed = 3
)

// ReceiptOptions are the per-request finishing flags. Drawer and cut only
// take effect when the printer profile enables them too.
type ReceiptOptions struct {
	Cut        bool
	CutMode    string
	OpenDrawer bool
}

type writer struct {
	bytes.Buffer
}

func (w *writer) cmd(b []byte) {
	w.Write(b)
}

// text writes s as one line, truncated to LineWidth. Empty text writes nothing.
func (w *writer) text(s string) {
	b := encodeText(s)
	if len(b) == 0 {
		return
	}
	w.raw(fitWidth(b, LineWidth))
}

func (w *writer) raw(b []byte) {
	w.Write(b)
	w.WriteByte(lf)
}

func (w *writer) blank() {
	w.WriteByte(lf)
}

func (w *writer) columns(left, right string) {
	w.raw(twoColumn(left, right))
}

func (w *writer) bold(s string) {
	w.cmd(Bold(true))
	w.text(s)
	w.cmd(Bold(false))
}

// BuildReceipt compiles a complete receipt for profile.
func BuildReceipt(p model.ReceiptPayload, profile model.PrinterProfile, opts ReceiptOptions) []byte {
	var w writer
	w.Grow(1024)

	w.cmd(Init())
	w.cmd(Align(AlignCenter))
	if strings.TrimSpace(p.LogoBase64) != "" {
		if raster := Raster(decodeLogo(p.LogoBase64)); raster != nil {
			w.cmd(raster)
			w.cmd(Align(AlignCenter))
		}
	}
	w.bold(p.CompanyName)
	w.text(p.CompanyNIF)
	w.text(p.TerminalName)
	w.text(p.PrintedAt)

	w.cmd(Align(AlignLeft))
	w.raw(rule())
	if strings.TrimSpace(p.DocumentNumber) != "" {
		w.bold(p.DocumentNumber)
	}
	if strings.TrimSpace(p.OperatorName) != "" {
		w.text(LabelOperator + p.OperatorName)
	}
	if strings.TrimSpace(p.ATCUD) != "" {
		w.text(LabelATCUD + p.ATCUD)
	}
	w.raw(rule())

	for _, item := range p.Items {
		w.text(item.Name)
		left := fmt.Sprintf("%s x %s", FormatQty(item.Qty.Decimal), FormatMoney(item.UnitPrice.Decimal))
		w.columns(left, FormatMoney(item.LineTotal.Decimal))
	}

	w.raw(rule())
	w.columns(LabelSubtotal, FormatMoney(p.Totals.Subtotal.Decimal))
	w.columns(LabelTax, FormatMoney(p.Totals.Tax.Decimal))
	w.cmd(Bold(true))
	w.columns(LabelTotal, FormatMoney(p.Totals.Total.Decimal))
	w.cmd(Bold(false))

	if len(p.Payments) > 0 {
		w.raw(rule())
		for _, pay := range p.Payments {
			w.columns(pay.Label, FormatMoney(pay.Amount.Decimal))
		}
	}

	if qr := QRCode(strings.TrimSpace(p.QRCode)); qr != nil {
		w.cmd(Align(AlignCenter))
		w.cmd(qr)
		w.blank()
		w.cmd(Align(AlignLeft))
	}

	w.blank()
	w.cmd(Align(AlignCenter))
	w.text(ThankYouLine)
	w.cmd(Align(AlignLeft))

	if opts.OpenDrawer && profile.CashDrawer.Enabled {
		w.cmd(DrawerKick(profile.CashDrawer.KickPulse))
	}
	if opts.Cut && profile.Cut.Enabled {
		mode := profile.Cut.Mode
		if strings.TrimSpace(opts.CutMode) != "" {
			mode = opts.CutMode
		}
		w.cmd(Cut(mode))
	}
	w.cmd(Feed(trailingFeed))
	return w.Bytes()
}

// BuildDrawerKick is init followed by the profile's drawer pulse. It does not
// consult CashDrawer.Enabled; an explicit drawer request always kicks.
func BuildDrawerKick(profile model.PrinterProfile) []byte {
	out := Init()
	return append(out, DrawerKick(profile.CashDrawer.KickPulse)...)
}

// BuildCut is init followed by a cut in modeOverride, or the profile's mode
// when the override is blank.
func BuildCut(profile model.PrinterProfile, modeOverride string) []byte {
	mode := profile.Cut.Mode
	if strings.TrimSpace(modeOverride) != "" {
		mode = modeOverride
	}
	out := Init()
	return append(out, Cut(mode)...)
}

// TestPrintPayload is the fixed one-item receipt used to check a printer.
func TestPrintPayload(profile model.PrinterProfile, title string, now time.Time) model.ReceiptPayload {
	if strings.TrimSpace(title) == "" {
		title = DefaultTestTitle
	}
	one := model.NewAmount(decimal.NewFromInt(1))
	return model.ReceiptPayload{
		CompanyName:    "PRINT GATEWAY",
		CompanyNIF:     "TESTE",
		TerminalName:   profile.Name,
		OperatorName:   "TESTE",
		DocumentNumber: "TEST-" + now.Format("20060102150405"),
		PrintedAt:      now.Format("02/01/2006 15:04:05"),
		Items: []model.ReceiptItem{
			{Name: title, Qty: one, UnitPrice: one, LineTotal: one},
		},
		Payments: []model.ReceiptPayment{
			{Label: "Numerario", Amount: one},
		},
		Totals: model.ReceiptTotals{
			Subtotal: model.MustAmount("0.81"),
			Tax:      model.MustAmount("0.19"),
			Total:    one,
		},
	}
}

// BuildTestPrint compiles the test receipt with cut and drawer requested;
// the profile still decides whether either happens.
func BuildTestPrint(profile model.PrinterProfile, title string, now time.Time) []byte {
	return BuildReceipt(TestPrintPayload(profile, title, now), profile, ReceiptOptions{Cut: true, OpenDrawer: true})
}
