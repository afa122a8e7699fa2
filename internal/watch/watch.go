// Package watch 在输入变化时重新触发处理（fsnotify + 去抖）。
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"fixify/internal/diag"
)

// DefaultDebounce 为缺省去抖窗口：窗口内的连续写入合并为一次触发。
const DefaultDebounce = 500 * time.Millisecond

// tick 为检查待触发事件的间隔。
const tick = 100 * time.Millisecond

// Options 为监听配置。
type Options struct {
	// Roots: 监听的文件或目录；目录递归监听（跳过以 '.' 开头的子目录）。
	Roots []string
	// Debounce: <=0 使用 DefaultDebounce。
	Debounce time.Duration
	// Accept: 过滤事件路径；nil 表示全部接受。
	Accept func(path string) bool
	Logger *diag.Logger
}

// OnChange 接收本轮变化的路径（去重、排序）。返回错误仅记录日志，不终止监听。
type OnChange func(ctx context.Context, paths []string) error

type watcher struct {
	fs       *fsnotify.Watcher
	opts     Options
	files    map[string]struct{} // 显式文件 root；其父目录被监听
	pending  map[string]struct{}
	lastSeen time.Time
}

// Watch 阻塞直至 ctx 取消（返回 nil）或监听器故障。
func Watch(ctx context.Context, opts Options, fn OnChange) error {
	if len(opts.Roots) == 0 {
		return errors.New("watch: no roots")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	w := &watcher{fs: fw, opts: opts, files: map[string]struct{}{}, pending: map[string]struct{}{}}
	for _, root := range opts.Roots {
		if err := w.addRoot(root); err != nil {
			return err
		}
	}
	opts.Logger.StartWithKV("watch", "listen", "", map[string]string{
		"roots":       strings.Join(opts.Roots, ","),
		"debounce_ms": fmt.Sprintf("%d", opts.Debounce.Milliseconds()),
	})

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			opts.Logger.ErrorWithKV("watch", string(diag.Classify(err)), "watcher error", nil, "", map[string]string{"err": err.Error()})
		case <-ticker.C:
			if len(w.pending) == 0 || time.Since(w.lastSeen) < opts.Debounce {
				continue
			}
			paths := w.drain()
			t := opts.Logger.StartWithKV("watch", "trigger", "", map[string]string{"changed": fmt.Sprintf("%d", len(paths))})
			if err := fn(ctx, paths); err != nil {
				opts.Logger.ErrorWithKV("watch", string(diag.Classify(err)), "rerun failed", t.Since(), "", map[string]string{"err": err.Error()})
				continue
			}
			t.Finish("trigger", int64(len(paths)))
		}
	}
}

func (w *watcher) addRoot(root string) error {
	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if !fi.IsDir() {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		w.files[abs] = struct{}{}
		return w.fs.Add(filepath.Dir(abs))
	}
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
}

// handle 记录关心的事件；新建目录加入监听。Chmod 忽略。
func (w *watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !strings.HasPrefix(filepath.Base(ev.Name), ".") {
				_ = w.addRoot(ev.Name)
			}
			return
		}
	}
	if len(w.files) > 0 && !w.watchedFile(ev.Name) && !w.underDirRoot(ev.Name) {
		return
	}
	if w.opts.Accept != nil && !w.opts.Accept(ev.Name) {
		return
	}
	w.pending[ev.Name] = struct{}{}
	w.lastSeen = time.Now()
}

func (w *watcher) watchedFile(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// underDirRoot 判断事件是否来自某个目录 root（而非显式文件 root 的父目录）。
func (w *watcher) underDirRoot(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, r := range w.opts.Roots {
		fi, err := os.Stat(r)
		if err != nil || !fi.IsDir() {
			continue
		}
		ra, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		if rel, err := filepath.Rel(ra, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *watcher) drain() []string {
	out := make([]string, 0, len(w.pending))
	for p := range w.pending {
		out = append(out, p)
	}
	sort.Strings(out)
	w.pending = map[string]struct{}{}
	return out
}
