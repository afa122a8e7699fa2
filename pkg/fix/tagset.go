package fix

import (
	"sort"
	"strings"
)

// TagSet 为 tag 标识集合（也用于请求类型集合）。
type TagSet map[string]struct{}

// NewTagSet 构造集合；空白项忽略，前后空白去除。
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Has 对 nil 集合返回 false。
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted 返回字典序排列的成员，便于日志与配置回显。
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
