package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"strings"
)

// TimeLayout is used wherever a timestamp is shown to a human.
const TimeLayout = "2006-01-02 15:04:05 -07:00"

var htmlReport = template.Must(template.New("report").Parse(`<h2>Internet is UP for host {{.Hostname}}</h2>

<table>
<tr>
<td>Current time</td>
<td>{{.Current}}</td>
</tr>
<tr>
<td>Canary start time</td>
<td>{{.Started}}</td>
</tr>
<tr>
<td>Host uptime</td>
<td>{{.Uptime}}</td>
</tr>
<tr>
<td>IP address</td>
<td>{{.IP}}</td>
</tr>
</table>
`))

type view struct {
	Hostname string
	Current  string
	Started  string
	Uptime   string
	IP       string
}

func (s Snapshot) view() view {
	return view{
		Hostname: s.Hostname,
		Current:  s.CurrentTime.Format(TimeLayout),
		Started:  s.ProcessStart.Format(TimeLayout),
		Uptime:   s.Uptime(),
		IP:       s.PublicIP,
	}
}

// Uptime renders the host uptime as "<days>d <hours>h".
func (s Snapshot) Uptime() string {
	return fmt.Sprintf("%dd %dh", s.UptimeDays, s.UptimeHours)
}

// Subject is the e-mail subject line for a report.
func Subject(s Snapshot) string {
	return "Internet connection canary message from " + s.Hostname
}

// HTML renders the report as the HTML table sent by e-mail.
func HTML(s Snapshot) string {
	var buf bytes.Buffer
	v := s.view()
	// Formatted timestamps hold only digits, signs, colons and spaces; the
	// escaper would otherwise turn the zone offset's "+" into "&#43;".
	hv := struct {
		Hostname         string
		Current, Started template.HTML
		Uptime, IP       string
	}{v.Hostname, template.HTML(v.Current), template.HTML(v.Started), v.Uptime, v.IP}
	if err := htmlReport.Execute(&buf, hv); err != nil {
		// Only fails on a broken writer; bytes.Buffer never is.
		return ""
	}
	return buf.String()
}

// Markdown renders the report for chat services that understand Markdown.
func Markdown(s Snapshot) string {
	v := s.view()
	var b strings.Builder
	fmt.Fprintf(&b, "**Internet is UP for host %s**\n", v.Hostname)
	fmt.Fprintf(&b, "Current time: %s\n", v.Current)
	fmt.Fprintf(&b, "Canary start time: %s\n", v.Started)
	fmt.Fprintf(&b, "Host uptime: %s\n", v.Uptime)
	fmt.Fprintf(&b, "IP address: `%s`", v.IP)
	return b.String()
}

// TelegramHTML renders the report in Telegram's HTML parse mode subset.
func TelegramHTML(s Snapshot) string {
	v := s.view()
	msg := fmt.Sprintf("🟢 <b>Internet is UP for host %s</b>\n", html.EscapeString(v.Hostname))
	msg += fmt.Sprintf("Current time: %s\n", v.Current)
	msg += fmt.Sprintf("Canary start time: %s\n", v.Started)
	msg += fmt.Sprintf("Host uptime: %s\n", v.Uptime)
	msg += fmt.Sprintf("IP address: <code>%s</code>", html.EscapeString(v.IP))
	return msg
}

// Text renders the report as plain text lines.
func Text(s Snapshot) string {
	v := s.view()
	return fmt.Sprintf("Internet is UP for host %s\nCurrent time:      %s\nCanary start time: %s\nHost uptime:       %s\nIP address:        %s\n",
		v.Hostname, v.Current, v.Started, v.Uptime, v.IP)
}

// JSON encodes the report for machine consumers.
func JSON(s Snapshot) ([]byte, error) {
	return json.Marshal(struct {
		Snapshot
		Uptime string `json:"uptime"`
		Sent   int64  `json:"timestamp"`
	}{
		Snapshot: s,
		Uptime:   s.Uptime(),
		Sent:     s.CurrentTime.Unix(),
	})
}
