package ziparchive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"

	"fixify/pkg/contract"
)

// DefaultArchiveName 为缺省归档文件名。
const DefaultArchiveName = "processed_FIX_files.zip"

// Options 为归档 Writer 的配置。
type Options struct {
	// OutputDir: 归档所在目录（必需）。
	OutputDir string `json:"output_dir"`
	// ArchiveName: 归档文件名；为空使用 DefaultArchiveName。
	ArchiveName string `json:"archive_name,omitempty"`
	// Prefix: 包内条目名前缀；nil 时为 "processed_"。
	Prefix *string `json:"prefix,omitempty"`
	// Level: deflate 压缩级别（1..9）；0 使用 flate.DefaultCompression。
	Level int `json:"level,omitempty"`
}

// Archive 收集全部产物，Close 时按条目名排序一次性写出 zip。
// Write 可被并发调用。
type Archive struct {
	dest   string
	prefix string
	level  int

	mu      sync.Mutex
	entries map[string][]byte
	closed  bool
}

var (
	_ contract.Writer = (*Archive)(nil)
	_ io.Closer       = (*Archive)(nil)
)

// New 创建归档 Writer。
func New(opts *Options) (*Archive, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, contract.ErrInvalidInput
	}
	name := opts.ArchiveName
	if name == "" {
		name = DefaultArchiveName
	}
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: archive name %q must not contain directories", contract.ErrPathInvalid, name)
	}
	lvl := opts.Level
	if lvl == 0 {
		lvl = flate.DefaultCompression
	}
	if lvl < flate.HuffmanOnly || lvl > flate.BestCompression {
		return nil, fmt.Errorf("%w: compression level %d", contract.ErrInvalidInput, lvl)
	}
	a := &Archive{
		dest:    filepath.Join(opts.OutputDir, name),
		prefix:  contract.DefaultOutputPrefix,
		level:   lvl,
		entries: make(map[string][]byte),
	}
	if opts.Prefix != nil {
		a.prefix = *opts.Prefix
	}
	return a, nil
}

// Path 返回归档的最终路径。
func (a *Archive) Path() string { return a.dest }

// Write 缓存一个条目；同名条目返回 ErrPathInvalid。
func (a *Archive) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := contract.OutputName(id, a.prefix)
	if name == a.prefix || name == a.prefix+"." || name == a.prefix+"/" {
		return contract.ErrPathInvalid
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("ziparchive: write after close")
	}
	if _, dup := a.entries[name]; dup {
		return fmt.Errorf("%w: duplicate archive entry %q", contract.ErrPathInvalid, name)
	}
	a.entries[name] = data
	return nil
}

// Close 写出归档（临时文件 + rename）；没有任何条目时不创建文件。重复调用无副作用。
func (a *Archive) Close() (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if len(a.entries) == 0 {
		return nil
	}
	names := make([]string, 0, len(a.entries))
	for n := range a.entries {
		names = append(names, n)
	}
	sort.Strings(names)

	dir := filepath.Dir(a.dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.zip")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, a.level)
	})
	now := time.Now()
	for _, n := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: n, Method: zip.Deflate, Modified: now})
		if err != nil {
			return err
		}
		if _, err := io.Copy(fw, bytes.NewReader(a.entries[n])); err != nil {
			return err
		}
	}
	if err = zw.Close(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), a.dest); err != nil {
		return err
	}
	a.entries = nil
	return nil
}
