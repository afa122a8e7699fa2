package tagfilter

import (
	"context"
	"io"
	"strings"

	"fixify/pkg/contract"
	"fixify/pkg/fix"
)

// Options 为标签过滤装配器的配置。
type Options struct {
	// DisallowedTags: 输出时剔除的 tag（如 9、10、52）。
	DisallowedTags []string `json:"disallowed_tags"`
	// TrailingNewline: 是否在末行后追加 '\n'。缺省 false。
	TrailingNewline bool `json:"trailing_newline"`
}

// Assembler 按入参顺序过滤并重序列化记录。
type Assembler struct {
	disallowed fix.TagSet
	trailing   bool
}

var _ contract.Assembler = (*Assembler)(nil)

// New 创建装配器。
func New(opts *Options) *Assembler {
	a := &Assembler{disallowed: fix.NewTagSet()}
	if opts != nil {
		a.disallowed = fix.NewTagSet(opts.DisallowedTags...)
		a.trailing = opts.TrailingNewline
	}
	return a
}

// Disallowed 返回生效的剔除集合（排序后）。
func (a *Assembler) Disallowed() []string { return a.disallowed.Sorted() }

// Assemble 逐条基于原始片段过滤，'\n' 连接。
func (a *Assembler) Assemble(ctx context.Context, _ contract.FileID, records []fix.Record) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := fix.Serialize(records, a.disallowed)
	if a.trailing && out != "" {
		out += "\n"
	}
	return strings.NewReader(out), nil
}
