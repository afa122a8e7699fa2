package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// table 为静态对齐表格：列宽取表头与单元格的最大显示宽度。
type table struct {
	headers []string
	rows    [][]string
}

// renderTable 渲染表格；rowStyle 为 nil 或未启用颜色时不着色。
func (r Renderer) renderTable(t table, rowStyle func(row int) lipgloss.Style) string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if i < len(widths) {
				if w := lipgloss.Width(c); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(r.paint(headerStyle, joinRow(t.headers, widths)))
	sb.WriteString("\n")
	total := 0
	for _, w := range widths {
		total += w
	}
	total += 3 * (len(widths) - 1)
	sb.WriteString(r.paint(mutedStyle, strings.Repeat("-", total)))
	sb.WriteString("\n")
	for i, row := range t.rows {
		line := joinRow(row, widths)
		if rowStyle != nil {
			line = r.paint(rowStyle(i), line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// joinRow 以 " | " 连接并按列宽右侧补空格；末列不补齐。
func joinRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i := range widths {
		c := ""
		if i < len(cells) {
			c = cells[i]
		}
		if i < len(widths)-1 {
			c += strings.Repeat(" ", widths[i]-lipgloss.Width(c))
		}
		parts[i] = c
	}
	return strings.Join(parts, " | ")
}
