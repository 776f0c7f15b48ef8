package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/teleop/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"phaseClass": func(p status.Phase) string {
		switch p {
		case status.PhaseRunning:
			return "running"
		case status.PhaseStopped:
			return "stopped"
		}
		return "init"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Teleop {{.Config.Program}}</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
h2 { font-size: 1.1em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.running { color: green; font-weight: bold; }
.stopped { color: #888; }
.init { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Teleop {{.Config.Program}} <span id="phase" class="{{phaseClass .Phase}}">{{.Phase}}</span></h1>

<div id="telemetry">
{{range .Sections}}<h2>{{.Name}}</h2>
<table>
{{range .Lines}}<tr><th>{{.Key}}</th><td>{{.Value}}</td></tr>
{{end}}</table>
{{else}}<p>No telemetry yet.</p>
{{end}}</div>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Driver station</th><td class="{{if .GamepadConnected}}connected{{else}}disconnected{{end}}">{{if .GamepadConnected}}connected{{else}}disconnected{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Run time</th><td>{{duration .RunTime}}</td></tr>
<tr><th>Ticks</th><td id="ticks">{{.Ticks}}</td></tr>
<tr><th>Errors</th><td>{{.Errors}}{{if .LastError}} ({{.LastError}}){{end}}</td></tr>
{{if .StopReason}}<tr><th>Stop reason</th><td>{{.StopReason}}</td></tr>{{end}}
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Lifecycle</th><td>{{.Config.Lifecycle}}</td></tr>
<tr><th>Loop</th><td>{{.Config.LoopMs}}ms</td></tr>
<tr><th>Telemetry</th><td>{{.Config.TelemetryMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var box = document.getElementById("telemetry");
  var phase = document.getElementById("phase");
  var ticks = document.getElementById("ticks");

  function esc(s) {
    return String(s).replace(/[&<>"]/g, function(c) {
      return { "&": "&amp;", "<": "&lt;", ">": "&gt;", '"': "&quot;" }[c];
    });
  }

  function render(st) {
    phase.textContent = st.phase;
    phase.className = st.phase === "RUNNING" ? "running" : st.phase === "STOPPED" ? "stopped" : "init";
    ticks.textContent = st.ticks;
    var html = "";
    st.telemetry.forEach(function(sec) {
      html += "<h2>" + esc(sec.name) + "</h2><table>";
      sec.lines.forEach(function(l) {
        html += "<tr><th>" + esc(l.key) + "</th><td>" + esc(l.value) + "</td></tr>";
      });
      html += "</table>";
    });
    box.innerHTML = html || "<p>No telemetry yet.</p>";
  }

  setInterval(function() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(j) { render(j.status); }).catch(function() {});
  }, 500);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Template methods cannot take arguments, so derived values are fields.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		RunTime  time.Duration
		Sections []status.SectionJSON
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		RunTime:  snap.RunTime(),
		Sections: status.Sections(snap),
	}
	indexTmpl.Execute(w, data)
}
