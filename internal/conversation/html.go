package conversation

import (
	"bytes"
	"html/template"
	"math"

	"github.com/yuin/goldmark"

	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
)

// HTMLExporter renders a standalone page. Message bodies are treated as
// markdown; goldmark drops raw HTML by default.
type HTMLExporter struct{}

func (HTMLExporter) Extension() string   { return "html" }
func (HTMLExporter) ContentType() string { return "text/html; charset=utf-8" }

var htmlFuncs = template.FuncMap{
	"renderMarkdown": renderMarkdown,
	"percent":        func(c float64) int { return int(math.Round(c * 100)) },
	"inc":            func(i int) int { return i + 1 },
}

var htmlPage = template.Must(template.New("export").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Chat export {{.Date}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;color:#1f2937}
.msg{border-radius:.5rem;padding:.75rem 1rem;margin:1rem 0}
.user{background:#eef2ff}.agent{background:#f3f4f6}
.meta{font-size:.8rem;color:#6b7280}
.conf-high{color:#047857}.conf-medium{color:#b45309}.conf-low{color:#b91c1c}
.warn{color:#b91c1c;font-weight:600}
</style>
</head>
<body>
<h1>Chat export</h1>
{{range .Messages}}<div class="msg {{.Role}}">
<div class="meta">{{.Time}} &middot; {{.Speaker}}</div>
{{renderMarkdown .Content}}
{{with .Data}}<p class="meta conf-{{.Level}}">Confidence: {{percent .Confidence}}%</p>
{{if .SecurityFlagged}}<p class="warn">Security notice: prompt injection attempt detected</p>
{{end}}{{if .Citations}}<ol class="meta">
{{range .Citations}}<li>{{.DocID}} ({{.Source}}{{if .Loc}}, {{.Loc}}{{end}}) - &ldquo;{{.Quote}}&rdquo;</li>
{{end}}</ol>
{{end}}{{end}}</div>
{{end}}</body>
</html>
`))

type htmlMessage struct {
	Role    string
	Speaker string
	Time    string
	Content string
	Data    *rag.AskResponse
}

func (HTMLExporter) Encode(msgs []types.Message, opts ExportOptions) ([]byte, error) {
	view := struct {
		Date     string
		Messages []htmlMessage
	}{
		Date:     opts.Now.UTC().Format("2006-01-02"),
		Messages: make([]htmlMessage, len(msgs)),
	}
	for i, m := range msgs {
		view.Messages[i] = htmlMessage{
			Role:    string(m.Role),
			Speaker: speaker(m.Role),
			Time:    m.Timestamp.In(opts.Location).Format(TextTimeLayout),
			Content: m.Content,
			Data:    m.Data,
		}
	}

	var buf bytes.Buffer
	if err := htmlPage.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
