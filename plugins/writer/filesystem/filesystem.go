package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"fixify/pkg/contract"
)

// Options 为文件系统 Writer 的配置。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Prefix: 输出文件名前缀；nil 时为 "processed_"，显式 "" 表示不加前缀。
	Prefix *string `json:"prefix,omitempty"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。缺省 true。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 是否扁平化输出（仅保留文件名）。缺省 true；false 时保留相对目录层级。
	Flat *bool `json:"flat,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用缺省 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// FS 将处理结果写入 OutputDir。
type FS struct {
	root    string
	prefix  string
	atomic  bool
	flat    bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int

	// written: 目标路径 -> 首个写入它的 id；不同 id 映射到同一目标时拒绝。
	mu      sync.Mutex
	written map[string]contract.ArtifactID
}

// New 创建文件系统 Writer；OutputDir 缺失返回 ErrInvalidInput。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, contract.ErrInvalidInput
	}
	w := &FS{
		root:    opts.OutputDir,
		prefix:  contract.DefaultOutputPrefix,
		atomic:  true,
		flat:    true,
		permF:   0o644,
		permD:   0o755,
		bufSize: 64 * 1024,
		written: make(map[string]contract.ArtifactID),
	}
	if opts.Prefix != nil {
		w.prefix = *opts.Prefix
	}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	if opts.Flat != nil {
		w.flat = *opts.Flat
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	return w, nil
}

var _ contract.Writer = (*FS)(nil)

// Write 将 r 的全部字节写入 id 映射出的目标路径。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if err := w.claim(dest, id); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	return w.writeOverwrite(ctx, dest, r)
}

// claim 登记 dest；同一 id 重写视为替换。
func (w *FS) claim(dest string, id contract.ArtifactID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.written[dest]; ok && prev != id {
		return fmt.Errorf("%w: duplicate output %q (from %s and %s)", contract.ErrPathInvalid, filepath.Base(dest), prev, id)
	}
	w.written[dest] = id
	return nil
}

// Dest 返回 id 对应的输出路径（不写入）。
func (w *FS) Dest(id contract.ArtifactID) (string, error) { return w.mapPath(id) }

// mapPath: 前缀命名 + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if rel == "." || rel == ".." || rel == "" || strings.HasSuffix(rel, string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	name := contract.OutputName(id, w.prefix)
	if w.flat {
		return filepath.Join(w.root, name), nil
	}
	// 非扁平：禁止绝对路径、父级逃逸、Windows 卷名
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", contract.ErrPathInvalid
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, filepath.Dir(rel), name), nil
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	return bw.Flush()
}

func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) (err error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = os.Chmod(tmpPath, w.permF)

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err = io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = osReplace(tmpPath, dest); err != nil {
		return err
	}
	// 最佳努力：同步父目录元数据
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
