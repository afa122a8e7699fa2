package fix

import (
	"fmt"
	"strings"
)

// CompareMode 为记录级比对模式。
type CompareMode string

const (
	// CompareTags 仅比较 tag 是否存在。
	CompareTags CompareMode = "tags"
	// CompareValues 同时比较值。
	CompareValues CompareMode = "values"
)

// ParseCompareMode 空串视为 tags。
func ParseCompareMode(s string) (CompareMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tags":
		return CompareTags, nil
	case "values":
		return CompareValues, nil
	default:
		return "", fmt.Errorf("unknown compare mode %q (want tags or values)", s)
	}
}

// TagStatus 为单个 tag 的比对结论。
type TagStatus string

const (
	// StatusMissingIn1: 仅出现在记录 2。
	StatusMissingIn1 TagStatus = "missingIn1"
	// StatusMissingIn2: 仅出现在记录 1。
	StatusMissingIn2 TagStatus = "missingIn2"
	// StatusPresent: tags 模式下两侧均存在。
	StatusPresent  TagStatus = "present"
	StatusMatch    TagStatus = "match"
	StatusMismatch TagStatus = "mismatch"
)

// TagDiffEntry 为并集中的一个 tag。
type TagDiffEntry struct {
	Tag    string    `json:"tag"`
	Value1 string    `json:"val1"`
	Value2 string    `json:"val2"`
	Has1   bool      `json:"has1"`
	Has2   bool      `json:"has2"`
	Status TagStatus `json:"status"`
}

// TagDiff 为记录级比对结果；便捷列表永不为 nil。
type TagDiff struct {
	Mode       CompareMode    `json:"mode"`
	Entries    []TagDiffEntry `json:"full"`
	MissingIn1 []string       `json:"missingIn1"`
	MissingIn2 []string       `json:"missingIn2"`
	Mismatched []string       `json:"mismatch"`
	Matched    []string       `json:"matched"`
}

// CompareRecords 在 tag 并集上逐一给出状态。并集顺序：先 r1 的首次出现顺序，再 r2 新增的 tag。
// 存在性以是否解析出该 tag 为准（空值也算存在）。
func CompareRecords(r1, r2 Record, mode CompareMode) TagDiff {
	if mode == "" {
		mode = CompareTags
	}
	d := TagDiff{
		Mode:       mode,
		MissingIn1: []string{},
		MissingIn2: []string{},
		Mismatched: []string{},
		Matched:    []string{},
	}
	seen := make(map[string]struct{}, r1.Len()+r2.Len())
	union := make([]string, 0, r1.Len()+r2.Len())
	for _, t := range append(r1.Tags(), r2.Tags()...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		union = append(union, t)
	}
	d.Entries = make([]TagDiffEntry, 0, len(union))
	for _, tag := range union {
		v1, ok1 := r1.Get(tag)
		v2, ok2 := r2.Get(tag)
		e := TagDiffEntry{Tag: tag, Value1: v1, Value2: v2, Has1: ok1, Has2: ok2}
		switch {
		case !ok1:
			e.Status = StatusMissingIn1
			d.MissingIn1 = append(d.MissingIn1, tag)
		case !ok2:
			e.Status = StatusMissingIn2
			d.MissingIn2 = append(d.MissingIn2, tag)
		case mode == CompareTags:
			e.Status = StatusPresent
		case v1 == v2:
			e.Status = StatusMatch
			d.Matched = append(d.Matched, tag)
		default:
			e.Status = StatusMismatch
			d.Mismatched = append(d.Mismatched, tag)
		}
		d.Entries = append(d.Entries, e)
	}
	return d
}

// Identical 表示两侧 tag 集合一致（values 模式下还要求无值差异）。
func (d TagDiff) Identical() bool {
	return len(d.MissingIn1) == 0 && len(d.MissingIn2) == 0 && len(d.Mismatched) == 0
}

// DefaultKeyTags: ClOrdID(11)、ExecID(17)、OrderID(37)。
func DefaultKeyTags() []string { return []string{"11", "17", "37"} }

// KeySeparator 为组合键分隔符。
const KeySeparator = "|"

// CompositeKey 取 keyTags 中存在且非空的值，按 keyTags 顺序以 '|' 连接。
// 全部缺失时返回空串；空键同样参与匹配。
func CompositeKey(r Record, keyTags []string) string {
	parts := make([]string, 0, len(keyTags))
	for _, t := range keyTags {
		if v := r.Value(t); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, KeySeparator)
}

// Match 为一对跨文件匹配记录。
type Match struct {
	A Record `json:"msg1"`
	B Record `json:"msg2"`
}

// FileDiff 为文件级对账结果；三个集合永不为 nil。
type FileDiff struct {
	KeyTags    []string `json:"key_tags"`
	Matches    []Match  `json:"matches"`
	Unmatched1 []Record `json:"unmatched1"`
	Unmatched2 []Record `json:"unmatched2"`
}

// CompareFiles 以组合键贪心匹配：按 recs1 原顺序，为每条记录取 recs2 中首个未被消费的同键记录。
// 找到则成对输出并消费该记录，否则计入 Unmatched1；最后 recs2 剩余者按原顺序计入 Unmatched2。
// 同键重复时先到先得：recs1 中多出的同键记录落入 Unmatched1。
// keyTags 为空时使用 DefaultKeyTags。
func CompareFiles(recs1, recs2 []Record, keyTags []string) FileDiff {
	if len(keyTags) == 0 {
		keyTags = DefaultKeyTags()
	}
	d := FileDiff{
		KeyTags:    append([]string(nil), keyTags...),
		Matches:    []Match{},
		Unmatched1: []Record{},
		Unmatched2: []Record{},
	}
	// 同键候选按原顺序排队，队首即“首个未消费”的记录。
	queues := make(map[string][]int, len(recs2))
	for i, r := range recs2 {
		k := CompositeKey(r, keyTags)
		queues[k] = append(queues[k], i)
	}
	consumed := make([]bool, len(recs2))
	for _, a := range recs1 {
		k := CompositeKey(a, keyTags)
		q := queues[k]
		if len(q) == 0 {
			d.Unmatched1 = append(d.Unmatched1, a)
			continue
		}
		j := q[0]
		queues[k] = q[1:]
		consumed[j] = true
		d.Matches = append(d.Matches, Match{A: a, B: recs2[j]})
	}
	for j, b := range recs2 {
		if !consumed[j] {
			d.Unmatched2 = append(d.Unmatched2, b)
		}
	}
	return d
}
