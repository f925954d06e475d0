package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"storefront/internal/models"
)

var receiptHTML = template.Must(template.New("receipt").Parse(`<h2>Thanks for your purchase</h2>
<table>
{{- range .Items}}
<tr><td>{{.Title}}</td><td>{{.Quantity}} x {{.UnitPrice.StringFixed 2}}</td><td>{{.Subtotal.StringFixed 2}}</td></tr>
{{- end}}
</table>
<p><strong>Total: {{.Amount.StringFixed 2}}</strong></p>
{{- if .Rejected}}
<p>{{len .Rejected}} product(s) were out of stock and remain in your cart.</p>
{{- end}}
`))

// BuildReceipt renders the purchase confirmation for a completed purchase
func BuildReceipt(event *models.PurchaseCompletedEvent) (Message, error) {
	var text strings.Builder
	fmt.Fprintf(&text, "Thanks for your purchase.\n\n")
	for _, line := range event.Items {
		fmt.Fprintf(&text, "%s  %d x %s = %s\n",
			line.Title, line.Quantity, line.UnitPrice.StringFixed(2), line.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(&text, "\nTotal: %s\n", event.Amount.StringFixed(2))
	if len(event.Rejected) > 0 {
		fmt.Fprintf(&text, "%d product(s) were out of stock and remain in your cart.\n", len(event.Rejected))
	}

	var html bytes.Buffer
	if err := receiptHTML.Execute(&html, event); err != nil {
		return Message{}, fmt.Errorf("failed to render receipt: %w", err)
	}

	return Message{
		To:      event.Purchaser,
		Subject: fmt.Sprintf("Your order receipt (%s)", event.Amount.StringFixed(2)),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
