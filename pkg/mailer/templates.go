package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const layoutHTML = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="font-family:Arial,sans-serif;background:#0b0b12;color:#f1f1f1;padding:24px">
<div style="max-width:560px;margin:0 auto;background:#16161f;border-radius:8px;padding:24px">
{{template "body" .}}
<p style="color:#888;font-size:12px;margin-top:32px">LastCall. Please drink responsibly.</p>
</div></body></html>`

var htmlBodies = map[string]string{
	"otp": `{{define "body"}}<h1>Your sign-in code</h1>
<p style="font-size:32px;letter-spacing:8px"><strong>{{.Data.Code}}</strong></p>
<p>This code expires in {{.Data.ExpiresInMinutes}} minutes. If you did not request it, ignore this email.</p>{{end}}`,

	"order_confirmation": `{{define "body"}}<h1>Order {{.Data.OrderNumber}} confirmed</h1>
<p>Hi {{.Data.Name}}, {{.Data.VenueName}} has your order.</p>
<table style="width:100%">{{range .Data.Items}}<tr><td>{{.Quantity}} × {{.Name}}</td><td style="text-align:right">${{.LineTotal}}</td></tr>{{end}}
<tr><td>Tip</td><td style="text-align:right">${{.Data.Tip}}</td></tr>
<tr><td><strong>Total</strong></td><td style="text-align:right"><strong>${{.Data.Total}}</strong></td></tr></table>
<p><a href="{{.Data.TrackURL}}">Track your order</a></p>{{end}}`,

	"order_status": `{{define "body"}}<h1>Order {{.Data.OrderNumber}} is {{.Data.Status}}</h1>
<p><a href="{{.Data.TrackURL}}">Track your order</a></p>{{end}}`,

	"cart_reminder": `{{define "body"}}<h1>{{if .Data.Second}}Last call on your cart{{else}}You left something behind{{end}}</h1>
<p>Hi {{.Data.Name}}, your cart is still waiting.</p>
<ul>{{range .Data.Items}}<li>{{.Quantity}} × {{.Name}}</li>{{end}}</ul>
<p>Total: <strong>${{.Data.Total}}</strong></p>
<p><a href="{{.Data.ResumeURL}}">Finish your order</a></p>
<p style="font-size:12px"><a href="{{.Data.OptOutURL}}">Stop cart reminders</a></p>{{end}}`,

	"sobriety_alert": `{{define "body"}}<h1>Time to slow down</h1>
<p>{{.Data.Message}}</p>
<p>Estimated BAC: <strong>{{.Data.BAC}}</strong></p>
<p>Drink water, eat something and arrange a safe ride home.</p>{{end}}`,
}

var textBodies = map[string]string{
	"otp":                "Your LastCall sign-in code is {{.Data.Code}}. It expires in {{.Data.ExpiresInMinutes}} minutes.",
	"order_confirmation": "Order {{.Data.OrderNumber}} at {{.Data.VenueName}} is confirmed. Total ${{.Data.Total}}. Track it at {{.Data.TrackURL}}",
	"order_status":       "Order {{.Data.OrderNumber}} is now {{.Data.Status}}. Track it at {{.Data.TrackURL}}",
	"sobriety_alert":     "{{.Data.Message}} Estimated BAC {{.Data.BAC}}. Please arrange a safe ride home.",
	"cart_reminder":      "Your cart ({{len .Data.Items}} items, ${{.Data.Total}}) is still waiting: {{.Data.ResumeURL}}\nStop reminders: {{.Data.OptOutURL}}",
}

type view struct {
	Subject string
	Data    any
}

// Renderer turns a named template and data into a Message.
type Renderer struct {
	html map[string]*htmltemplate.Template
	text map[string]*texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		html: make(map[string]*htmltemplate.Template, len(htmlBodies)),
		text: make(map[string]*texttemplate.Template, len(textBodies)),
	}
	for name, body := range htmlBodies {
		tpl, err := htmltemplate.New(name).Parse(layoutHTML)
		if err == nil {
			_, err = tpl.Parse(body)
		}
		if err != nil {
			return nil, fmt.Errorf("parse html template %s: %w", name, err)
		}
		r.html[name] = tpl
	}
	for name, body := range textBodies {
		tpl, err := texttemplate.New(name).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse text template %s: %w", name, err)
		}
		r.text[name] = tpl
	}
	return r, nil
}

// MustRenderer panics on template errors; templates are compiled in.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Renderer) Render(name, to, subject string, data any) (Message, error) {
	htmlTpl, ok := r.html[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", name)
	}
	v := view{Subject: subject, Data: data}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTpl.Execute(&htmlBuf, v); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := r.text[name].Execute(&textBuf, v); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: htmlBuf.String(), Text: textBuf.String(), Category: name}, nil
}
