package report

import (
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cognicore/textscore/pkg/textscore/result"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"float": formatFloat,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>Analysis Report</title>
  <style>
    body { font-family: sans-serif; margin: 2rem; }
    table { border-collapse: collapse; width: 100%; }
    th, td { padding: 8px; border: 1px solid #ddd; }
  </style>
</head>
<body>
  <h1>Analysis Report</h1>
  <p>Count: {{ len . }}</p>
  <table>
    <thead><tr><th>ID</th><th>Text</th><th>Num words</th><th>Psych</th><th>Music</th></tr></thead>
    <tbody>
      {{- range . }}
      <tr>
        <td>{{ if .ID }}{{ .RowID }}{{ end }}</td>
        <td>{{ .Text }}</td>
        <td>{{ .Features.NumWords }}</td>
        <td>{{ float .Score.Psych }}</td>
        <td>{{ float .Score.Music }}</td>
      </tr>
      {{- end }}
    </tbody>
  </table>
</body>
</html>
`))

// RenderHTML writes an HTML report with one table row per result.
// Row text is escaped by the template engine.
func RenderHTML(w io.Writer, results []result.Result) error {
	if results == nil {
		results = []result.Result{}
	}
	return htmlTemplate.Execute(w, results)
}

// formatFloat prints a score the way the other report formats read it: whole
// numbers keep a ".0" and very large or small magnitudes use an exponent.
func formatFloat(f float64) string {
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
