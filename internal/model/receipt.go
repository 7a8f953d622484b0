package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"receipt-print-gateway/internal/parse"
)

// Amount is a decimal value that accepts JSON numbers as well as the
// formatted strings point-of-sale clients send ("1,50", "EUR 3.00").
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// MustAmount parses s and panics on failure. Intended for literals.
func MustAmount(s string) Amount {
	d, err := parse.ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return Amount{Decimal: d}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
	}

	d, err := parse.ParseAmount(raw)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// ReceiptPayload is the structured description of a receipt to print.
type ReceiptPayload struct {
	CompanyName    string           `json:"company_name"`
	CompanyNIF     string           `json:"company_nif"`
	TerminalName   string           `json:"terminal_name"`
	OperatorName   string           `json:"operator_name"`
	DocumentNumber string           `json:"document_number"`
	ATCUD          string           `json:"atcud"`
	QRCode         string           `json:"qrcode"`
	LogoBase64     string           `json:"logo_base64"`
	PrintedAt      string           `json:"printed_at"`
	Items          []ReceiptItem    `json:"items"`
	Payments       []ReceiptPayment `json:"payments"`
	Totals         ReceiptTotals    `json:"totals"`
}

// ReceiptItem is one sold line.
type ReceiptItem struct {
	Name      string `json:"name"`
	Qty       Amount `json:"qty"`
	UnitPrice Amount `json:"unit_price"`
	LineTotal Amount `json:"line_total"`
}

// ReceiptPayment is one tender line.
type ReceiptPayment struct {
	Label  string `json:"label"`
	Amount Amount `json:"amount"`
}

// ReceiptTotals holds the document totals.
type ReceiptTotals struct {
	Subtotal Amount `json:"subtotal"`
	Tax      Amount `json:"tax"`
	Total    Amount `json:"total"`
}

// DefaultCompanyName is printed when a receipt arrives without one.
const DefaultCompanyName = "POS"

// NewReceiptPayload returns an empty receipt with the default company name.
func NewReceiptPayload() ReceiptPayload {
	return ReceiptPayload{CompanyName: DefaultCompanyName}
}

// UnmarshalJSON applies the defaults a client may omit: a company name and a
// quantity of one per item.
func (p *ReceiptPayload) UnmarshalJSON(b []byte) error {
	type plain ReceiptPayload
	out := plain(NewReceiptPayload())
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*p = ReceiptPayload(out)
	return nil
}

// UnmarshalJSON defaults the quantity to one when the field is missing.
func (i *ReceiptItem) UnmarshalJSON(b []byte) error {
	type plain ReceiptItem
	out := plain{Qty: NewAmount(decimal.NewFromInt(1))}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*i = ReceiptItem(out)
	return nil
}
