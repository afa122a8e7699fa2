// Package report 渲染比较与解释结果：文本（lipgloss 对齐表格）或 JSON。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"fixify/pkg/fix"
)

// Placeholder 为缺失值在文本输出中的占位符。
const Placeholder = "—"

// Format 为输出格式。
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat 接受 text|json（大小写不敏感）；空串视为 text。
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

// Renderer 将结果写入 io.Writer。Color=false 时输出纯文本（无 ANSI 序列）。
type Renderer struct {
	Format Format
	Color  bool
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	headerStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	matchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	mismatchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	missingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func (r Renderer) paint(st lipgloss.Style, s string) string {
	if !r.Color {
		return s
	}
	return st.Render(s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// TagDiff 渲染记录级比对。
func (r Renderer) TagDiff(w io.Writer, d fix.TagDiff) error {
	if r.Format == FormatJSON {
		return writeJSON(w, d)
	}
	var sb strings.Builder
	summary := fmt.Sprintf("mode %s | tags %d | missing in 1: %d | missing in 2: %d",
		d.Mode, len(d.Entries), len(d.MissingIn1), len(d.MissingIn2))
	if d.Mode == fix.CompareValues {
		summary += fmt.Sprintf(" | mismatched: %d | matched: %d", len(d.Mismatched), len(d.Matched))
	}
	sb.WriteString(r.paint(titleStyle, summary))
	sb.WriteString("\n")

	t := table{headers: []string{"Tag", "Name", "Message 1", "Message 2", "Status"}}
	styles := make([]lipgloss.Style, 0, len(d.Entries))
	for _, e := range d.Entries {
		t.rows = append(t.rows, []string{e.Tag, tagName(e.Tag), cell(e.Value1, e.Has1), cell(e.Value2, e.Has2), string(e.Status)})
		styles = append(styles, statusStyle(e.Status))
	}
	sb.WriteString(r.renderTable(t, func(row int) lipgloss.Style { return styles[row] }))
	_, err := io.WriteString(w, sb.String())
	return err
}

// fileDiffJSON 为文件级 JSON 输出，附带每对匹配记录的值差异。
type fileDiffJSON struct {
	KeyTags    []string     `json:"key_tags"`
	Summary    fileSummary  `json:"summary"`
	Matches    []matchJSON  `json:"matches"`
	Unmatched1 []fix.Record `json:"unmatched1"`
	Unmatched2 []fix.Record `json:"unmatched2"`
}

type fileSummary struct {
	Matched    int `json:"matched"`
	Unmatched1 int `json:"unmatched1"`
	Unmatched2 int `json:"unmatched2"`
}

type matchJSON struct {
	Key        string     `json:"key"`
	Msg1       fix.Record `json:"msg1"`
	Msg2       fix.Record `json:"msg2"`
	Mismatched []string   `json:"mismatch"`
	MissingIn1 []string   `json:"missingIn1"`
	MissingIn2 []string   `json:"missingIn2"`
}

// FileDiff 渲染文件级对账：匹配对（含值差异摘要）与两侧未匹配记录。
func (r Renderer) FileDiff(w io.Writer, d fix.FileDiff) error {
	if r.Format == FormatJSON {
		out := fileDiffJSON{
			KeyTags:    d.KeyTags,
			Summary:    fileSummary{Matched: len(d.Matches), Unmatched1: len(d.Unmatched1), Unmatched2: len(d.Unmatched2)},
			Matches:    make([]matchJSON, 0, len(d.Matches)),
			Unmatched1: d.Unmatched1,
			Unmatched2: d.Unmatched2,
		}
		for _, m := range d.Matches {
			td := fix.CompareRecords(m.A, m.B, fix.CompareValues)
			out.Matches = append(out.Matches, matchJSON{
				Key:        fix.CompositeKey(m.A, d.KeyTags),
				Msg1:       m.A,
				Msg2:       m.B,
				Mismatched: td.Mismatched,
				MissingIn1: td.MissingIn1,
				MissingIn2: td.MissingIn2,
			})
		}
		return writeJSON(w, out)
	}

	var sb strings.Builder
	sb.WriteString(r.paint(titleStyle, fmt.Sprintf("key tags %s | matched %d | file 1 unmatched %d | file 2 unmatched %d",
		strings.Join(d.KeyTags, ","), len(d.Matches), len(d.Unmatched1), len(d.Unmatched2))))
	sb.WriteString("\n")

	if len(d.Matches) > 0 {
		sb.WriteString("\n" + r.paint(headerStyle, "Matched") + "\n")
		t := table{headers: []string{"Line 1", "Line 2", "Key", "Type", "Differences"}}
		styles := make([]lipgloss.Style, 0, len(d.Matches))
		for _, m := range d.Matches {
			td := fix.CompareRecords(m.A, m.B, fix.CompareValues)
			st := matchStyle
			if !td.Identical() {
				st = mismatchStyle
			}
			t.rows = append(t.rows, []string{
				lineNo(m.A), lineNo(m.B), keyCell(fix.CompositeKey(m.A, d.KeyTags)), typeCell(m.A), differences(td),
			})
			styles = append(styles, st)
		}
		sb.WriteString(r.renderTable(t, func(row int) lipgloss.Style { return styles[row] }))
	}
	r.writeUnmatched(&sb, "File 1 unmatched", d.Unmatched1, d.KeyTags)
	r.writeUnmatched(&sb, "File 2 unmatched", d.Unmatched2, d.KeyTags)
	_, err := io.WriteString(w, sb.String())
	return err
}

func (r Renderer) writeUnmatched(sb *strings.Builder, title string, recs []fix.Record, keyTags []string) {
	if len(recs) == 0 {
		return
	}
	sb.WriteString("\n" + r.paint(headerStyle, title) + "\n")
	t := table{headers: []string{"Line", "Key", "Type", "Message"}}
	for _, rec := range recs {
		t.rows = append(t.rows, []string{lineNo(rec), keyCell(fix.CompositeKey(rec, keyTags)), typeCell(rec), rec.Raw()})
	}
	sb.WriteString(r.renderTable(t, func(int) lipgloss.Style { return missingStyle }))
}

// explainJSON 为 explain 的 JSON 输出。
type explainJSON struct {
	Raw    string           `json:"raw"`
	Fields []fix.Annotation `json:"fields"`
}

// Explain 渲染单条消息的逐 tag 注释。
func (r Renderer) Explain(w io.Writer, rec fix.Record) error {
	anns := fix.Explain(rec)
	if r.Format == FormatJSON {
		return writeJSON(w, explainJSON{Raw: rec.Raw(), Fields: anns})
	}
	t := table{headers: []string{"Tag", "Name", "Value", "Meaning"}}
	for _, a := range anns {
		t.rows = append(t.rows, []string{a.Tag, orPlaceholder(a.Name), a.Value, orPlaceholder(a.Meaning)})
	}
	_, err := io.WriteString(w, r.renderTable(t, nil))
	return err
}

// ---- helpers ----

func statusStyle(s fix.TagStatus) lipgloss.Style {
	switch s {
	case fix.StatusMatch, fix.StatusPresent:
		return matchStyle
	case fix.StatusMismatch:
		return mismatchStyle
	default:
		return missingStyle
	}
}

func tagName(tag string) string {
	if n, ok := fix.TagName(tag); ok {
		return n
	}
	return ""
}

func cell(v string, has bool) string {
	if !has {
		return Placeholder
	}
	return v
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func keyCell(k string) string {
	if k == "" {
		return "(none)"
	}
	return k
}

func typeCell(r fix.Record) string {
	t := r.Type()
	if t == "" {
		return Placeholder
	}
	if m, ok := fix.ValueMeaning(fix.TypeTag, t); ok {
		return t + " " + m
	}
	return t
}

func lineNo(r fix.Record) string {
	if r.Line() <= 0 {
		return Placeholder
	}
	return strconv.Itoa(r.Line())
}

func differences(td fix.TagDiff) string {
	if td.Identical() {
		return "identical"
	}
	var parts []string
	if len(td.Mismatched) > 0 {
		parts = append(parts, "values "+strings.Join(td.Mismatched, ","))
	}
	if len(td.MissingIn1) > 0 {
		parts = append(parts, "only in 2: "+strings.Join(td.MissingIn1, ","))
	}
	if len(td.MissingIn2) > 0 {
		parts = append(parts, "only in 1: "+strings.Join(td.MissingIn2, ","))
	}
	return strings.Join(parts, "; ")
}
