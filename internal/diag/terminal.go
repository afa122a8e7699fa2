package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 单行 \r 覆盖汇总进度；非 TTY: 每个文件完成时分行打印。
// - 文件并发处理，状态按计数维护；并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	concurrency int
	mode        string
	runStart    time.Time
	inFlight    int
	filesDone   int
	filesFailed int
	filesSkip   int
	records     int

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				t.isTTY = fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return t
}

// RunStart 记录运行上下文（并发度、排序模式）。
func (t *Terminal) RunStart(concurrency int, mode string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.concurrency = concurrency
	t.mode = mode
	t.inFlight, t.filesDone, t.filesFailed, t.filesSkip, t.records = 0, 0, 0, 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("[run] concurrency=%d | sort=%s", concurrency, safe(mode)))
}

// FileStart 标记一个文件进入处理。
func (t *Terminal) FileStart(fileID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.inFlight++
	t.progress()
}

// FileFinish 完成一个文件；records 为输出记录数。
func (t *Terminal) FileFinish(fileID string, ok bool, records int, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.inFlight > 0 {
		t.inFlight--
	}
	tag := t.plain(okStyle, "done")
	if ok {
		t.filesDone++
		t.records += records
	} else {
		t.filesFailed++
		tag = t.plain(failStyle, "fail")
	}
	t.clearInline()
	t.println(fmt.Sprintf("[%s] %s | records %d | %s", tag, shortenBase(fileID, 48), records, formatDur(dur)))
	t.progress()
}

// FileSkip 记录被跳过的文件。
func (t *Terminal) FileSkip(fileID, reason string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.filesSkip++
	t.clearInline()
	t.println(fmt.Sprintf("[%s] %s | %s", t.plain(skipStyle, "skip"), shortenBase(fileID, 48), safe(reason)))
}

// RunFinish 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := t.plain(okStyle, "ok")
	if !ok {
		tag = t.plain(failStyle, "fail")
	}
	t.clearInline()
	t.println(fmt.Sprintf("[%s] files %d | failed %d | skipped %d | records %d | %s",
		tag, t.filesDone, t.filesFailed, t.filesSkip, t.records, formatDur(dur)))
}

// plain 仅在 TTY 下着色。
func (t *Terminal) plain(st lipgloss.Style, s string) string {
	if !t.isTTY {
		return s
	}
	return st.Render(s)
}

// progress 在 TTY 下单行覆盖（≥100ms 节流）。
func (t *Terminal) progress() {
	if !t.isTTY {
		return
	}
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	line := fmt.Sprintf("[run] done %d | in-flight %d | failed %d | concurrency %d | %s",
		t.filesDone, t.inFlight, t.filesFailed, t.concurrency, formatSince(t.runStart))
	t.printInline(dimStyle.Render(line), visLen(line))
}

func (t *Terminal) clearInline() {
	if t.isTTY && t.lastLen > 0 {
		t.printInline("", 0)
	}
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

// printInline: \r + 内容 + 尾部空格覆盖旧行。width 为可见宽度。
func (t *Terminal) printInline(s string, width int) {
	if !t.enabled {
		return
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if t.lastLen > width {
		b.WriteString(strings.Repeat(" ", t.lastLen-width))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = width
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if visLen(base) <= max {
		return base
	}
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	return string([]rune(base)[:cut]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
