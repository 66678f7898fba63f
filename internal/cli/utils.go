// Package cli writes search views and backend status to a terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hyperjump/boutique/internal/models"
	"github.com/hyperjump/boutique/internal/present"
	"github.com/hyperjump/boutique/pkg/utils"
)

// OutputFormat is the format for view and status output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per product.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const descriptionWidth = 200

const separator = "─────────────────────────────────────────────────────────"

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", errors.Newf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteView writes a rendered search view to w in the given format.
// Unknown formats are written as text.
func WriteView(w io.Writer, view present.View, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, view)
	case OutputCompact:
		writeViewCompact(w, view)
	default:
		writeViewText(w, view)
	}
	return nil
}

func writeViewText(w io.Writer, view present.View) {
	switch view.Kind {
	case present.ViewIdle:
		return
	case present.ViewLoading, present.ViewEmpty:
		fmt.Fprintf(w, "%s\n", view.Message)
		return
	case present.ViewError:
		fmt.Fprintf(w, "Error: %s\n", view.Message)
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", view.Heading)
	for _, c := range view.Cards {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "#%d %s [%s]\n", c.Rank, c.Name, c.ProductID)
		fmt.Fprintf(w, "Price: %s | Match: %s\n", c.Price, c.Badge)
		fmt.Fprintf(w, "Image: %s\n", c.ImageURL)
		if c.Description != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(c.Description, descriptionWidth))
		}
		fmt.Fprintln(w)
	}
}

func writeViewCompact(w io.Writer, view present.View) {
	switch view.Kind {
	case present.ViewIdle:
		return
	case present.ViewResults:
	case present.ViewError:
		fmt.Fprintf(w, "error: %s\n", view.Message)
		return
	default:
		fmt.Fprintln(w, view.Message)
		return
	}
	for _, c := range view.Cards {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.Rank, c.ProductID, c.Name, c.Price, c.Badge)
	}
}

// WriteHealth writes a backend health report to w in the given format.
func WriteHealth(w io.Writer, health *models.HealthResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, health)
	case OutputCompact:
		fmt.Fprintf(w, "%s\t%s\tmodels=%s\tredis=%s\n",
			health.Status, health.Version, yesNo(health.ModelsLoaded), yesNo(health.RedisConnected))
	default:
		fmt.Fprintf(w, "Backend:         %s\n", health.Status)
		fmt.Fprintf(w, "Version:         %s\n", health.Version)
		fmt.Fprintf(w, "Models loaded:   %s\n", yesNo(health.ModelsLoaded))
		fmt.Fprintf(w, "Redis connected: %s\n", yesNo(health.RedisConnected))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
