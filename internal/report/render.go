package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/util"
)

// Options control rendering.
type Options struct {
	NoColor bool
	// Details prints each outcome's detail next to it.
	Details bool
}

type palette struct {
	pass, fail, head, dim func(a ...any) string
}

func newPalette(noColor bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		pass: mk(color.FgGreen, color.Bold),
		fail: mk(color.FgRed, color.Bold),
		head: mk(color.FgCyan, color.Bold),
		dim:  mk(color.FgHiBlack),
	}
}

// Render writes the pass/fail table, the overall ratio, and either the
// healthy verdict or remediation hints for each failed step.
func Render(w io.Writer, s Summary, opts Options) error {
	p := newPalette(opts.NoColor)
	var b strings.Builder

	title := "Test Results"
	if s.Suite != "" {
		title += ": " + s.Suite
	}
	fmt.Fprintf(&b, "\n%s\n%s\n", p.head(title), strings.Repeat("=", len(title)))

	width := 0
	for _, name := range s.Order {
		width = max(width, len(name))
	}
	for _, name := range s.Order {
		o := s.ByName[name]
		status := p.pass("PASS")
		if !o.Passed {
			status = p.fail("FAIL")
		}
		fmt.Fprintf(&b, "%s  %-*s  %8s", status, width, name, p.dim(formatDuration(o.Duration)))
		if opts.Details || !o.Passed {
			if d := FormatDetail(o.Detail); d != "" {
				fmt.Fprintf(&b, "  %s", d)
			}
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nOverall: %d/%d passed", s.Passed, s.Total)
	if !s.Latency.IsZero() {
		fmt.Fprintf(&b, "  (p50 %s, p90 %s, max %s)",
			formatDuration(s.Latency.P50), formatDuration(s.Latency.P90), formatDuration(s.Latency.Max))
	}
	b.WriteByte('\n')

	if s.Healthy {
		fmt.Fprintf(&b, "%s\n", p.pass("All checks passed. The notification pipeline is healthy."))
	} else {
		fmt.Fprintf(&b, "%s\n", p.fail(fmt.Sprintf("%d check(s) need attention:", s.Total-s.Passed)))
		for _, name := range s.Failed() {
			fmt.Fprintf(&b, "  - %s: %s\n", name, Hint(name))
		}
	}

	if n := s.Delivered(); n > 0 {
		fmt.Fprintf(&b, "\nCheck your device: %d notification(s) should have arrived.\n", n)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes the summary as indented JSON.
func RenderJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

const maxDetailLen = 120

// FormatDetail renders an outcome detail on one line. Maps print as sorted
// key=value pairs.
func FormatDetail(d any) string {
	var s string
	switch v := d.(type) {
	case nil:
		return ""
	case string:
		s = v
	case step.Details:
		s = formatMap(v)
	case map[string]any:
		s = formatMap(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprint(v)
		} else {
			s = string(raw)
		}
	}
	return util.Truncate(s, maxDetailLen)
}

func formatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var val string
		switch v := m[k].(type) {
		case string:
			val = v
		case fmt.Stringer:
			val = v.String()
		default:
			if raw, err := json.Marshal(v); err == nil {
				val = string(raw)
			} else {
				val = fmt.Sprint(v)
			}
		}
		parts = append(parts, k+"="+val)
	}
	return strings.Join(parts, " ")
}
