package fixlines

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"fixify/pkg/contract"
	"fixify/pkg/fix"
)

// DefaultAllowExts 为缺省允许的扩展名。
var DefaultAllowExts = []string{".txt", ".fix", ".log"}

// Options 为行拆分器的可选配置。
type Options struct {
	// MaxLineBytes: 单行最大字节数（归一化后）。0 表示不限制。
	MaxLineBytes int `json:"max_line_bytes"`
	// AllowExts: 允许处理的文件扩展名（大小写不敏感，含点）。
	// nil 采用 DefaultAllowExts；显式空切片表示不限制。STDIN 总是放行。
	AllowExts []string `json:"allow_exts"`
}

// Splitter 将文件字节归一化为 '|' 分隔，按行解析为 fix.Record。
type Splitter struct {
	maxBytes int
	allow    map[string]struct{}
}

// New 创建行拆分器。
func New(opts *Options) *Splitter {
	s := &Splitter{}
	var exts []string
	if opts == nil || opts.AllowExts == nil {
		exts = DefaultAllowExts
	} else {
		exts = opts.AllowExts
	}
	if len(exts) > 0 {
		s.allow = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			if e != "" {
				s.allow[strings.ToLower(e)] = struct{}{}
			}
		}
	}
	if opts != nil && opts.MaxLineBytes > 0 {
		s.maxBytes = opts.MaxLineBytes
	}
	return s
}

// Split 读取整个文件并解析；行号为非空行的序号（1 起始）。
// 扩展名不在允许列表或内容含 NUL 字节（二进制）时返回 ErrSkipFile。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) ([]fix.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.allow != nil && fileID != "stdin" {
		ext := strings.ToLower(path.Ext(string(fileID)))
		if _, ok := s.allow[ext]; !ok {
			return nil, fmt.Errorf("%w: %s: extension %q not allowed", contract.ErrSkipFile, fileID, ext)
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s: binary content", contract.ErrSkipFile, fileID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs := fix.ParseText(string(data))
	if s.maxBytes > 0 {
		for _, rec := range recs {
			if n := len(rec.Raw()); n > s.maxBytes {
				return nil, fmt.Errorf("%w: %s:%d: line is %d bytes (max %d)", contract.ErrInvalidInput, fileID, rec.Line(), n, s.maxBytes)
			}
		}
	}
	return recs, nil
}
