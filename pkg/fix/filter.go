package fix

import "strings"

// FilterTags 基于原始片段重序列化：跳过 tag ∈ disallowed 的片段，其余按原顺序以 '|' 连接。
// 片段的 tag 取首个 '=' 之前的部分；无 '=' 的片段以整段作为 tag。
// 畸形与重复片段原样保留，值的原始格式不受解析影响；不修改 Record。
func FilterTags(r Record, disallowed TagSet) string {
	if len(disallowed) == 0 {
		return r.raw
	}
	segs := r.Segments()
	kept := make([]string, 0, len(segs))
	for _, s := range segs {
		tag, _, _ := strings.Cut(s, "=")
		if disallowed.Has(tag) {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, Delimiter)
}

// Serialize 逐条过滤后以 '\n' 连接（不追加行尾换行）。
func Serialize(records []Record, disallowed TagSet) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FilterTags(r, disallowed))
	}
	return b.String()
}

// ProcessOptions 汇总处理流水线的调用期参数。
type ProcessOptions struct {
	Order        OrderOptions
	RequestTypes TagSet
	Disallowed   TagSet
}

// DefaultProcessOptions: 缺省请求类型 + Mixed/90052 + 不过滤。
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{Order: DefaultOrderOptions(), RequestTypes: DefaultRequestTypes()}
}

// Process 对单个文本块执行完整处理：解析 → 聚簇 → 排序 → 过滤 → 以 '\n' 连接。
// 空输入返回空串。
func Process(text string, opts ProcessOptions) string {
	recs := ParseText(text)
	if len(recs) == 0 {
		return ""
	}
	rt := opts.RequestTypes
	if rt == nil {
		rt = DefaultRequestTypes()
	}
	ordered := Order(GroupClusters(recs, rt), opts.Order)
	return Serialize(ordered, opts.Disallowed)
}
