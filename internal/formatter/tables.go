// Package formatter tidies Markdown produced by the normalizer.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const minColumnWidth = 3

type alignment int

const (
	alignNone alignment = iota
	alignLeft
	alignRight
	alignCenter
)

// AlignTables pads the cells of every GFM table in content so that columns line up
// by display width. Separator rows are rebuilt to the column width with their
// alignment markers kept. Lines inside fenced code blocks are never touched.
func AlignTables(content string) string {
	lines := strings.Split(content, "\n")

	var (
		out     []string
		buffer  []string
		inFence bool
	)

	flush := func() {
		if len(buffer) > 0 {
			out = append(out, alignTable(buffer)...)
			buffer = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			flush()

			inFence = !inFence
			out = append(out, line)

			continue
		}

		if !inFence && strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			buffer = append(buffer, trimmed)
			continue
		}

		flush()

		out = append(out, line)
	}

	flush()

	return strings.Join(out, "\n")
}

// alignTable rewrites one block of pipe rows. Blocks without a separator in the
// second row are not tables and come back unchanged.
func alignTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, splitRow(row))
	}

	aligns, ok := parseSeparator(table[1])
	if !ok {
		return rows
	}

	cols := 0
	for _, row := range table {
		cols = max(cols, len(row))
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = minColumnWidth
	}

	for r, row := range table {
		if r == 1 {
			continue
		}

		for c, cell := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	result := make([]string, 0, len(table))

	for r, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for c := 0; c < cols; c++ {
			sb.WriteString(" ")

			if r == 1 {
				align := alignNone
				if c < len(aligns) {
					align = aligns[c]
				}

				sb.WriteString(separatorCell(align, widths[c]))
			} else {
				cell := ""
				if c < len(row) {
					cell = row[c]
				}

				sb.WriteString(runewidth.FillRight(cell, widths[c]))
			}

			sb.WriteString(" |")
		}

		result = append(result, sb.String())
	}

	return result
}

// splitRow splits a row on unescaped pipes and trims each cell. The empty cells
// produced by the outer pipes are dropped.
func splitRow(row string) []string {
	var (
		cells []string
		cell  strings.Builder
	)

	runes := []rune(row)
	for i := 0; i < len(runes); i++ {
		switch {
		case runes[i] == '\\' && i+1 < len(runes) && runes[i+1] == '|':
			cell.WriteString(`\|`)
			i++
		case runes[i] == '|':
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteRune(runes[i])
		}
	}

	cells = append(cells, strings.TrimSpace(cell.String()))

	if len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}

	if len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}

	return cells
}

func parseSeparator(cells []string) ([]alignment, bool) {
	if len(cells) == 0 {
		return nil, false
	}

	aligns := make([]alignment, len(cells))

	for i, cell := range cells {
		left := strings.HasPrefix(cell, ":")
		right := strings.HasSuffix(cell, ":")

		dashes := strings.Trim(cell, ":")
		if dashes == "" || strings.Trim(dashes, "-") != "" {
			return nil, false
		}

		switch {
		case left && right:
			aligns[i] = alignCenter
		case left:
			aligns[i] = alignLeft
		case right:
			aligns[i] = alignRight
		}
	}

	return aligns, true
}

func separatorCell(align alignment, width int) string {
	switch align {
	case alignLeft:
		return ":" + strings.Repeat("-", width-1)
	case alignRight:
		return strings.Repeat("-", width-1) + ":"
	case alignCenter:
		return ":" + strings.Repeat("-", width-2) + ":"
	default:
		return strings.Repeat("-", width)
	}
}
