package ops

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

const exportTitle = "Shell history"

// markdownEscaper backslash-escapes the characters that would otherwise
// break a table cell or start inline markup.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"\n", " ",
)

// renderMarkdown writes items as a markdown document with one table row per
// item, in the order given.
func renderMarkdown(w io.Writer, header ExportHeader, items []history.Item) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", exportTitle)
	fmt.Fprintf(&b, "- Export: %s\n", header.ExportID)
	fmt.Fprintf(&b, "- Exported at: %s\n", time.Unix(header.ExportedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Items: %d\n\n", len(items))

	if len(items) == 0 {
		b.WriteString("No history.\n")
	} else {
		b.WriteString("| Time (UTC) | Command | Directory | Exit | Duration |\n")
		b.WriteString("| --- | --- | --- | ---: | ---: |\n")
		for _, it := range items {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n",
				it.Timestamp.UTC().Format("2006-01-02 15:04:05"),
				markdownEscaper.Replace(it.CommandLine),
				markdownEscaper.Replace(it.Cwd),
				it.ExitStatus,
				formatDuration(it.Duration),
			)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// renderHTML renders the markdown export to a standalone HTML page.
func renderHTML(w io.Writer, header ExportHeader, items []history.Item) error {
	var md bytes.Buffer
	if err := renderMarkdown(&md, header, items); err != nil {
		return err
	}

	var body bytes.Buffer
	converter := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := converter.Convert(md.Bytes(), &body); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to render html: %w", err))
	}

	page := fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(exportTitle), body.String())
	if _, err := io.WriteString(w, page); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// formatDuration prints a measured duration, or "-" when unknown.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "-"
	}
	return d.String()
}
