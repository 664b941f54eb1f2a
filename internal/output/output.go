package output

import (
	"fmt"
	"strings"
	"time"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// FetchReport summarizes one feed resolution.
type FetchReport struct {
	Domain    string        `json:"domain"`
	Key       string        `json:"key"`
	Source    string        `json:"source"`
	FromCache bool          `json:"from_cache"`
	Shared    bool          `json:"shared,omitempty"`
	Abandoned bool          `json:"abandoned,omitempty"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMS int64         `json:"elapsed_ms"`
	Items     int           `json:"items"`
	Attempts  []AttemptRow  `json:"attempts"`
	Data      any           `json:"data,omitempty"`
}

// AttemptRow is one source invocation inside a FetchReport.
type AttemptRow struct {
	Source    string `json:"source"`
	ElapsedMS int64  `json:"elapsed_ms"`
	// Code is the error taxonomy code of a failed attempt.
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// SourceRow describes one planned source of a domain cascade.
type SourceRow struct {
	Domain   string        `json:"domain"`
	Position int           `json:"position"`
	Name     string        `json:"name"`
	Provider string        `json:"provider"`
	Keyed    bool          `json:"keyed"`
	Timeout  time.Duration `json:"timeout"`
	TTL      time.Duration `json:"ttl"`
	// Skipped is empty for sources that take part in the cascade.
	Skipped string `json:"skipped,omitempty"`
}

// Formatter renders command reports.
type Formatter interface {
	FormatFetch(report *FetchReport) (string, error)
	FormatSources(rows []SourceRow) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func statusLabel(row SourceRow) string {
	if row.Skipped != "" {
		return "skipped: " + row.Skipped
	}
	return "active"
}

func keyedLabel(keyed bool) string {
	if keyed {
		return "yes"
	}
	return "no"
}

func cacheLabel(report *FetchReport) string {
	switch {
	case report.FromCache:
		return "hit"
	case report.Shared:
		return "shared"
	default:
		return "miss"
	}
}

func attemptOutcome(a AttemptRow) string {
	switch {
	case a.Error == "":
		return "ok"
	case a.Code != "":
		return a.Code + ": " + a.Error
	default:
		return a.Error
	}
}
