package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fixify/pkg/contract"
)

func noTmp(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("tmp file not cleaned: %s", e.Name())
		}
	}
}

// TestWriteAtomic 原子写入，缺省 processed_ 前缀
func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Write(context.Background(), "logs/a.fix", bytes.NewBufferString("35=D")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "processed_a.fix"))
	if err != nil || string(b) != "35=D" {
		t.Fatalf("unexpected file %v %q", err, string(b))
	}
	noTmp(t, dir)
}

// TestWriteAtomicReplaceExisting 目标已存在时替换为新内容
func TestWriteAtomicReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	w, _ := New(&Options{OutputDir: dir})
	for _, v := range []string{"v1", "v2"} {
		if err := w.Write(context.Background(), "a.txt", bytes.NewBufferString(v)); err != nil {
			t.Fatalf("write %s: %v", v, err)
		}
	}
	b, _ := os.ReadFile(filepath.Join(dir, "processed_a.txt"))
	if string(b) != "v2" {
		t.Fatalf("expect replaced content v2, got %q", string(b))
	}
	noTmp(t, dir)
}

// TestWriteFlatDuplicateName 扁平模式下不同输入映射到同名输出时拒绝，首个输出保留
func TestWriteFlatDuplicateName(t *testing.T) {
	dir := t.TempDir()
	w, _ := New(&Options{OutputDir: dir})
	if err := w.Write(context.Background(), "a/x.fix", strings.NewReader("35=D|11=A")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	err := w.Write(context.Background(), "b/x.fix", strings.NewReader("35=D|11=B"))
	if !errors.Is(err, contract.ErrPathInvalid) {
		t.Fatalf("expect ErrPathInvalid, got %v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "processed_x.fix"))
	if string(b) != "35=D|11=A" {
		t.Fatalf("first output overwritten: %q", string(b))
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expect 1 file, got %d", len(entries))
	}
}

// TestWriteNonFlatSameBase 保留层级时同名文件互不冲突
func TestWriteNonFlatSameBase(t *testing.T) {
	dir := t.TempDir()
	flat := false
	w, _ := New(&Options{OutputDir: dir, Flat: &flat})
	for _, id := range []contract.ArtifactID{"a/x.fix", "b/x.fix"} {
		if err := w.Write(context.Background(), id, strings.NewReader(string(id))); err != nil {
			t.Fatalf("write %s: %v", id, err)
		}
	}
	for _, sub := range []string{"a", "b"} {
		b, err := os.ReadFile(filepath.Join(dir, sub, "processed_x.fix"))
		if err != nil || string(b) != sub+"/x.fix" {
			t.Fatalf("unexpected %s: %v %q", sub, err, string(b))
		}
	}
}

// TestWriteCustomPrefix 显式空前缀与自定义前缀
func TestWriteCustomPrefix(t *testing.T) {
	dir := t.TempDir()
	empty, sorted := "", "sorted-"
	w1, _ := New(&Options{OutputDir: dir, Prefix: &empty})
	w2, _ := New(&Options{OutputDir: dir, Prefix: &sorted})
	w1.Write(context.Background(), "a.txt", strings.NewReader("1"))
	w2.Write(context.Background(), "a.txt", strings.NewReader("2"))
	for name, want := range map[string]string{"a.txt": "1", "sorted-a.txt": "2"} {
		if b, err := os.ReadFile(filepath.Join(dir, name)); err != nil || string(b) != want {
			t.Fatalf("%s: %v %q", name, err, string(b))
		}
	}
}

// TestWritePathInvalid 非扁平模式下父级逃逸
func TestWritePathInvalid(t *testing.T) {
	flat := false
	w, _ := New(&Options{OutputDir: t.TempDir(), Flat: &flat})
	err := w.Write(context.Background(), "../bad.txt", bytes.NewBufferString("x"))
	if !errors.Is(err, contract.ErrPathInvalid) {
		t.Fatalf("expect path invalid, got %v", err)
	}
}

// TestWriteNonFlatNonAtomic 保留目录层级的覆盖写
func TestWriteNonFlatNonAtomic(t *testing.T) {
	dir := t.TempDir()
	flat, atomic := false, false
	w, _ := New(&Options{OutputDir: dir, Flat: &flat, Atomic: &atomic})
	if err := w.Write(context.Background(), "sub/out.txt", bytes.NewBufferString("v")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub", "processed_out.txt")); err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if p, _ := w.Dest("sub/out.txt"); p != filepath.Join(dir, "sub", "processed_out.txt") {
		t.Fatalf("dest %s", p)
	}
}

// TestWriteCtxCancel 上下文取消
func TestWriteCtxCancel(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Write(ctx, "a.txt", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx error, got %v", err)
	}
}

// TestNewInvalid 参数缺失
func TestNewInvalid(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("expect error for nil opts")
	}
	if _, err := New(&Options{OutputDir: "  "}); err == nil {
		t.Fatalf("expect error for empty output dir")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

// TestWriteAtomicCopyError 原子写入时拷贝失败不留临时文件
func TestWriteAtomicCopyError(t *testing.T) {
	dir := t.TempDir()
	w, _ := New(&Options{OutputDir: dir})
	if err := w.Write(context.Background(), "a.txt", errReader{}); err == nil {
		t.Fatalf("expect copy error")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("temp files left %v", entries)
	}
}

// TestReaderWithCtxCancel reader 在读取前取消
func TestReaderWithCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := readerWithCtx(ctx, strings.NewReader("data"))
	cancel()
	if _, err := r.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expect ctx error")
	}
}
