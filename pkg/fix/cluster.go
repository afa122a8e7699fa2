package fix

import (
	"fmt"
	"slices"
	"strings"
)

// 缺省排序字段：90052 为主（私有高精度时间戳），52 为次（SendingTime）。
const (
	DefaultPrimarySortTag   = "90052"
	DefaultSecondarySortTag = "52"
)

// DefaultRequestTypes 返回触发新簇的缺省 MsgType 集合：
// D(New Order Single) G(Cancel/Replace) F(Cancel) J(Allocation) AK(Confirmation) AU(Confirmation Ack)。
func DefaultRequestTypes() TagSet {
	return NewTagSet("D", "G", "F", "J", "AK", "AU")
}

// Cluster: 以请求类型记录为锚点的连续记录段；非空，首条记录决定排序键。
type Cluster struct {
	Records []Record
}

// Leader 返回簇首记录。
func (c Cluster) Leader() Record {
	if len(c.Records) == 0 {
		return Record{}
	}
	return c.Records[0]
}

func (c Cluster) Len() int { return len(c.Records) }

// GroupClusters 按顺序遍历记录，遇到 35 ∈ requestTypes 即关闭当前簇并以该记录开新簇；
// 其余记录追加到当前簇。首条记录无论类型都会开启第一个簇；不产出空簇。
func GroupClusters(records []Record, requestTypes TagSet) []Cluster {
	if len(records) == 0 {
		return nil
	}
	var clusters []Cluster
	var cur []Record
	for _, r := range records {
		if requestTypes.Has(r.Type()) && len(cur) > 0 {
			clusters = append(clusters, Cluster{Records: cur})
			cur = nil
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		clusters = append(clusters, Cluster{Records: cur})
	}
	return clusters
}

// Flatten 按簇顺序拼接全部记录。
func Flatten(clusters []Cluster) []Record {
	n := 0
	for _, c := range clusters {
		n += len(c.Records)
	}
	out := make([]Record, 0, n)
	for _, c := range clusters {
		out = append(out, c.Records...)
	}
	return out
}

// SortMode 为排序策略名。
type SortMode string

const (
	// ModeMixed: 簇按首记录排序键稳定排序。
	ModeMixed SortMode = "Mixed"
	// ModeProper: 扁平序列整体反转，忽略排序键。
	ModeProper SortMode = "Proper"
)

// ParseSortMode 大小写不敏感；空串视为 Mixed。
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mixed":
		return ModeMixed, nil
	case "proper":
		return ModeProper, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q (want Mixed or Proper)", s)
	}
}

// OrderOptions 为 Order 的排序参数。
type OrderOptions struct {
	Mode SortMode
	// UsePrimary 为 true 时以 PrimaryTag 排序，否则以 SecondaryTag。
	UsePrimary   bool
	PrimaryTag   string
	SecondaryTag string
}

// DefaultOrderOptions: Mixed + 90052。
func DefaultOrderOptions() OrderOptions {
	return OrderOptions{
		Mode:         ModeMixed,
		UsePrimary:   true,
		PrimaryTag:   DefaultPrimarySortTag,
		SecondaryTag: DefaultSecondarySortTag,
	}
}

// SortTag 返回 Mixed 模式下生效的排序字段。
func (o OrderOptions) SortTag() string {
	if o.UsePrimary {
		if o.PrimaryTag == "" {
			return DefaultPrimarySortTag
		}
		return o.PrimaryTag
	}
	if o.SecondaryTag == "" {
		return DefaultSecondarySortTag
	}
	return o.SecondaryTag
}

// Order 返回最终输出顺序的扁平记录序列。
//   - Proper：整体反转（不是簇内反转），与簇边界无关；重复应用会再次反转，不幂等。
//   - Mixed：按首记录排序键做稳定排序，缺失键视为 ""，按字节序比较；同键保持原相对顺序。
//
// 不修改入参。
func Order(clusters []Cluster, opts OrderOptions) []Record {
	if opts.Mode == ModeProper {
		out := Flatten(clusters)
		slices.Reverse(out)
		return out
	}
	tag := opts.SortTag()
	sorted := slices.Clone(clusters)
	slices.SortStableFunc(sorted, func(a, b Cluster) int {
		return strings.Compare(a.Leader().Value(tag), b.Leader().Value(tag))
	})
	return Flatten(sorted)
}
