package fix

import (
	"encoding/json"
	"strings"
)

// TypeTag 为消息类型字段（MsgType）。
const TypeTag = "35"

// Field 为一个 tag=value 对。
type Field struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// Record: 一行已解析的消息。
// 约束：
//   - tag 在记录内唯一；同一行重复出现时后值覆盖，位置保持首次出现处；
//   - fields 顺序即首次出现顺序，用于确定性输出；
//   - raw 为归一化后的原始行，Tag 过滤始终基于 raw 片段而非 fields。
type Record struct {
	raw    string
	line   int
	fields []Field
	index  map[string]int
}

// Parse 解析单行（无行号）。
func Parse(line string) Record { return ParseLine(line, 0) }

// ParseLine 解析单行并记录 1 起始的源行号（0 表示未知）。
// 规则：
//   - 先按 '|' 切片，再按首个 '=' 切分为 tag/value；
//   - 无 '=' 的片段不产生字段；空 tag（"=x"）同样丢弃；
//   - "tag=" 产生空值。
//
// 该函数从不失败。
func ParseLine(line string, lineNo int) Record {
	raw := Normalize(line)
	r := Record{raw: raw, line: lineNo}
	if raw == "" {
		return r
	}
	for _, seg := range strings.Split(raw, Delimiter) {
		tag, value, ok := strings.Cut(seg, "=")
		if !ok || tag == "" {
			continue
		}
		r.set(tag, value)
	}
	return r
}

// ParseText 对整段文本做 归一化 → 拆行 → 逐行解析，行号自 1 起。
func ParseText(text string) []Record {
	lines := SplitLines(Normalize(text))
	if len(lines) == 0 {
		return nil
	}
	out := make([]Record, len(lines))
	for i, l := range lines {
		out[i] = ParseLine(l, i+1)
	}
	return out
}

func (r *Record) set(tag, value string) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[tag]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[tag] = len(r.fields)
	r.fields = append(r.fields, Field{Tag: tag, Value: value})
}

// Get 返回 tag 的值与是否存在。
func (r Record) Get(tag string) (string, bool) {
	i, ok := r.index[tag]
	if !ok {
		return "", false
	}
	return r.fields[i].Value, true
}

// Value 返回 tag 的值；缺失时返回空串。
func (r Record) Value(tag string) string {
	v, _ := r.Get(tag)
	return v
}

func (r Record) Has(tag string) bool {
	_, ok := r.index[tag]
	return ok
}

// Type 返回 35 字段（MsgType）。
func (r Record) Type() string { return r.Value(TypeTag) }

// Tags 按首次出现顺序返回全部 tag。
func (r Record) Tags() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Tag
	}
	return out
}

// Fields 返回字段副本。
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r Record) Len() int { return len(r.fields) }

// Raw 返回归一化后的原始行。
func (r Record) Raw() string { return r.raw }

// Line 返回源行号（1 起始；0 表示未知）。
func (r Record) Line() int { return r.line }

// Segments 返回原始行按 '|' 切分后的全部片段（含畸形与重复片段）。
func (r Record) Segments() []string {
	if r.raw == "" {
		return nil
	}
	return strings.Split(r.raw, Delimiter)
}

// String 即 Raw，便于日志与报告输出。
func (r Record) String() string { return r.raw }

// MarshalJSON 以有序字段列表输出，避免 map 打乱 tag 顺序。
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Line   int     `json:"line,omitempty"`
		Raw    string  `json:"raw"`
		Fields []Field `json:"fields"`
	}{Line: r.line, Raw: r.raw, Fields: r.Fields()})
}
