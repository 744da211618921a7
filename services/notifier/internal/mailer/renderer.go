// Package mailer превращает события order.confirmed в письма покупателю
// и отправляет их по SMTP.
package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"example.com/settlement/pkg/events"
)

// Message — готовое к отправке письмо.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

const subjectFormat = "Заказ %s подтверждён"

const htmlLayout = `<!DOCTYPE html>
<html lang="ru">
<head><meta charset="UTF-8"><title>Заказ {{.OrderID}}</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
	<h2 style="color: #333;">Спасибо за заказ{{if .Name}}, {{.Name}}{{end}}!</h2>
	<p>Заказ <strong>{{.OrderID}}</strong> подтверждён.{{if eq .PaymentMethod "cod"}} Оплата при получении.{{end}}</p>
	<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background-color: #f0f0f0;">
				<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Товар</th>
				<th style="padding: 8px; text-align: right; border: 1px solid #ddd;">Кол-во</th>
				<th style="padding: 8px; text-align: right; border: 1px solid #ddd;">Цена</th>
			</tr>
		</thead>
		<tbody>
		{{range .Items}}<tr>
			<td style="padding: 8px; border: 1px solid #ddd;">{{.ProductName}}</td>
			<td style="padding: 8px; text-align: right; border: 1px solid #ddd;">{{.Quantity}}</td>
			<td style="padding: 8px; text-align: right; border: 1px solid #ddd;">{{money .UnitPrice}} {{$.Currency}}</td>
		</tr>
		{{end}}</tbody>
	</table>
	<p>Подытог: {{money .Subtotal}} {{.Currency}}</p>
	{{if .Discount.IsPositive}}<p>Скидка: -{{money .Discount}} {{.Currency}}</p>{{end}}
	<p>Доставка: {{money .Shipping}} {{.Currency}}</p>
	<p><strong>Итого: {{money .Total}} {{.Currency}}</strong></p>
</div>
</body>
</html>`

const textLayout = `Спасибо за заказ{{if .Name}}, {{.Name}}{{end}}!

Заказ {{.OrderID}} подтверждён.
{{range .Items}}
- {{.ProductName}} x{{.Quantity}}: {{money .UnitPrice}} {{$.Currency}}{{end}}

Подытог: {{money .Subtotal}} {{.Currency}}
{{if .Discount.IsPositive}}Скидка: -{{money .Discount}} {{.Currency}}
{{end}}Доставка: {{money .Shipping}} {{.Currency}}
Итого: {{money .Total}} {{.Currency}}
`

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Renderer рендерит письмо подтверждения заказа.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewRenderer парсит встроенные шаблоны.
func NewRenderer() (*Renderer, error) {
	h, err := htmltemplate.New("order_html").
		Funcs(htmltemplate.FuncMap{"money": money}).
		Parse(htmlLayout)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора HTML шаблона: %w", err)
	}

	t, err := texttemplate.New("order_text").
		Funcs(texttemplate.FuncMap{"money": money}).
		Parse(textLayout)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора текстового шаблона: %w", err)
	}

	return &Renderer{html: h, text: t}, nil
}

// Render собирает письмо по событию. Позиции без названия подписываются id товара.
func (r *Renderer) Render(n *events.OrderNotification) (*Message, error) {
	view := *n
	view.Items = make([]events.OrderItem, len(n.Items))
	for i, item := range n.Items {
		if item.ProductName == "" {
			item.ProductName = item.ProductID
		}
		view.Items[i] = item
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, &view); err != nil {
		return nil, fmt.Errorf("ошибка рендеринга HTML: %w", err)
	}
	if err := r.text.Execute(&textBuf, &view); err != nil {
		return nil, fmt.Errorf("ошибка рендеринга текста: %w", err)
	}

	return &Message{
		To:      n.Email,
		ToName:  n.Name,
		Subject: fmt.Sprintf(subjectFormat, n.OrderID),
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}
