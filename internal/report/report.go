package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/gcparser/internal/storage"
)

// Summary aggregates a set of stored records.
type Summary struct {
	TotalRecords int
	ByKind       map[string]int
	ByIdentity   map[string]int
	PremiumOnly  int // cache listings restricted to subscribers
	Archived     int
	Disabled     int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

// GenerateSummary processes stored records into a Summary. Records fetched
// anonymously are counted under the identity "anonymous".
func GenerateSummary(records []*storage.Record) Summary {
	s := Summary{
		ByKind:     make(map[string]int),
		ByIdentity: make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].FetchedAt
	s.EndTime = records[0].FetchedAt

	for _, r := range records {
		s.TotalRecords++
		s.ByKind[r.Kind]++

		identity := r.Identity
		if identity == "" {
			identity = "anonymous"
		}
		s.ByIdentity[identity]++

		if flag(r, "premium_only") {
			s.PremiumOnly++
		}
		if flag(r, "archived") {
			s.Archived++
		}
		if flag(r, "disabled") {
			s.Disabled++
		}

		if r.FetchedAt.Before(s.StartTime) {
			s.StartTime = r.FetchedAt
		}
		if r.FetchedAt.After(s.EndTime) {
			s.EndTime = r.FetchedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

func flag(r *storage.Record, key string) bool {
	if r.Fields == nil {
		return false
	}
	v, _ := r.Fields.Get(key)
	b, _ := v.(bool)
	return b
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `gcparser Record Summary
-----------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Total Records: {{.TotalRecords}}
Premium Only:  {{.PremiumOnly}}
Archived:      {{.Archived}}
Disabled:      {{.Disabled}}

By Kind:
{{- range $kind, $count := .ByKind}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}

By Identity:
{{- range $name, $count := .ByIdentity}}
  {{$name}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>gcparser Record Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>gcparser Record Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Records</div>
    <div class="stat-val">{{.TotalRecords}}</div>
  </div>
  <div class="stat-card">
    <div>Premium Only</div>
    <div class="stat-val">{{.PremiumOnly}}</div>
  </div>
  <div class="stat-card">
    <div>Archived</div>
    <div class="stat-val">{{.Archived}}</div>
  </div>
  <div class="stat-card">
    <div>Disabled</div>
    <div class="stat-val">{{.Disabled}}</div>
  </div>

  <h3>By Kind</h3>
  <table>
    <tr><th>Kind</th><th>Count</th></tr>
    {{- range $kind, $count := .ByKind}}
    <tr><td>{{$kind}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>By Identity</h3>
  <table>
    <tr><th>Identity</th><th>Count</th></tr>
    {{- range $name, $count := .ByIdentity}}
    <tr><td>{{$name}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}

	return nil
}
