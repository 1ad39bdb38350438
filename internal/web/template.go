package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/beacon/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"since": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("15:04:05.000")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Beacon</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.high { color: green; font-weight: bold; }
.low { color: #888; }
.fault { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Beacon</h1>

<h2>Devices</h2>
<table>
<tr><th>Name</th><th>Pin</th><th>Light</th><th>Mode</th><th>Level</th><th>Last change</th><th>Faults</th></tr>
{{range .Devices}}<tr>
<td>{{.Name}}</td>
<td>{{.Pin}} ({{.Scheme}})</td>
<td>{{.Visibility}}</td>
<td>{{.FlashMode}}</td>
<td class="{{if eq .Level.String "HIGH"}}high{{else}}low{{end}}">{{.Level}}</td>
<td>{{since .LastChange}}</td>
<td{{if .Faults}} class="fault"{{end}}>{{.Faults}}</td>
</tr>{{end}}
</table>

<h2>Deliveries</h2>
<table>
<tr><th>Kind</th><th>Pending</th><th>Sent</th><th>Retried</th><th>Perished</th></tr>
{{range .Rows}}<tr>
<td>{{.Kind}}</td>
<td>{{.Pending}}</td>
<td>{{.Counts.Sent}}</td>
<td>{{.Counts.Retried}}</td>
<td{{if .Counts.Perished}} class="fault"{{end}}>{{.Counts.Perished}}</td>
</tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type kindRow struct {
	Kind    string
	Pending int
	Counts  status.DeliveryCounts
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template needs plain fields rather than methods with maps behind them.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Rows   []kindRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, k := range snap.Kinds() {
		data.Rows = append(data.Rows, kindRow{
			Kind:    string(k),
			Pending: snap.Pending[k],
			Counts:  snap.Deliveries[k],
		})
	}
	return indexTmpl.Execute(w, data)
}
