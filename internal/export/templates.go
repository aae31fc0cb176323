package export

import (
	"bytes"
	"html/template"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(reportTemplateHTML))

// RenderReportHTML renders the window report template.
func RenderReportHTML(report Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Johari Window | {{.OwnerName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 760px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #2a7f62; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 1.5rem; }
    .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; }
    .pane { border: 1px solid #ccc; border-radius: 4px; padding: 1rem; }
    .pane h2 { margin-top: 0; font-size: 1.1em; color: #2a7f62; }
    .pane p.desc { color: #666; font-size: 0.85em; }
    .adjective { display: inline-block; background: #eef5f2; border-radius: 3px; padding: 2px 8px; margin: 2px; font-size: 0.9em; }
    table { border-collapse: collapse; width: 100%; margin-top: 2rem; }
    th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: center; }
    th { background: #eef5f2; }
    td.domain { text-align: left; text-transform: capitalize; }
  </style>
</head>
<body>
  <h1>Johari Window</h1>
  <div class="meta">{{.OwnerName}} | {{.PeerCount}} peer responses | computed {{formatDate .ComputedAt "Jan 2, 2006 15:04"}}</div>

  <div class="grid">
    {{range .Quadrants}}
    <div class="pane">
      <h2>{{.Name}}</h2>
      <p class="desc">{{.Description}}</p>
      {{range .Adjectives}}<span class="adjective">{{.}}</span>{{else}}<em>none</em>{{end}}
    </div>
    {{end}}
  </div>

  <table>
    <tr><th>Domain</th><th>Open</th><th>Blind</th><th>Hidden</th><th>Unknown</th></tr>
    {{range .Domains}}
    <tr><td class="domain">{{.Domain}}</td><td>{{.Open}}</td><td>{{.Blind}}</td><td>{{.Hidden}}</td><td>{{.Unknown}}</td></tr>
    {{end}}
  </table>
</body>
</html>`
