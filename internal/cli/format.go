package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	folderColor  = color.New(color.FgCyan, color.Bold)
	unknownColor = color.New(color.FgMagenta)
	dimColor     = color.New(color.FgHiBlack)
)

func printSection(w io.Writer, title string) {
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", msg)
}

func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %-10s ", label+":")
	_, _ = valueColor.Fprintln(w, value)
}

func printEmptyState(w io.Writer, msg string) {
	_, _ = dimColor.Fprintf(w, "  %s\n", msg)
}

// printTable prints rows under headers with left-aligned columns.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	fmt.Fprint(w, "  ")
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(w, "  ")
		}
		_, _ = headerColor.Fprintf(w, "%-*s", widths[i], h)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "  ")
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "  ")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		fmt.Fprint(w, "  ")
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				fmt.Fprint(w, "  ")
			}
			fmt.Fprintf(w, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}
