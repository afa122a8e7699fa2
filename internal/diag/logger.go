package diag

import (
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为组件级结构化日志器：zap JSON 编码，每行一个事件。
// 事件形状：comp、stage(start|finish|error|skip)、code、dur_ms、count、file_id、kv、corr_id。
// nil *Logger 上的所有方法均为 no-op。
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
	sink  *RotatingFile
}

// NewLogger 写入 dir 下的轮转文件（10 MiB）。dir 为空时为 "logs"。
func NewLogger(corrID, level, dir string) *Logger {
	sink := NewRotatingFile(dir, 10*1024*1024)
	l := NewLoggerTo(sink, corrID, level)
	l.sink = sink
	return l
}

// NewLoggerTo 写入任意 WriteSyncer（测试与 stderr 输出）。
func NewLoggerTo(ws zapcore.WriteSyncer, corrID, level string) *Logger {
	lvl := zap.NewAtomicLevelAt(ParseLevel(level))
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = func(t time.Time, pe zapcore.PrimitiveArrayEncoder) {
		pe.AppendString(t.UTC().Format(time.RFC3339))
	}
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, lvl)
	z := zap.New(core)
	if corrID != "" {
		z = z.With(zap.String("corr_id", corrID))
	}
	return &Logger{z: z, level: lvl}
}

// NewWriterLogger 便捷构造：io.Writer 包装为 WriteSyncer。
func NewWriterLogger(w io.Writer, corrID, level string) *Logger {
	return NewLoggerTo(zapcore.AddSync(w), corrID, level)
}

// ParseLevel 接受 debug|info|warn|error（大小写不敏感）；其余按 info。
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLevel 运行期调整级别。
func (l *Logger) SetLevel(level string) {
	if l == nil {
		return
	}
	l.level.SetLevel(ParseLevel(level))
}

// Zap 返回底层 zap.Logger（nil 接收者返回 zap.NewNop()）。
func (l *Logger) Zap() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.z
}

// Sync 刷新缓冲；Close 额外关闭文件。
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// kvObject 以稳定键序输出 kv。
type kvObject map[string]string

func (m kvObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddString(k, m[k])
	}
	return nil
}

type event struct {
	comp, stage, code, fileID, msg string
	dur, count                     int64
	kv                             map[string]string
}

func (l *Logger) log(lv zapcore.Level, ev event) {
	if l == nil {
		return
	}
	ce := l.z.Check(lv, ev.msg)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, 7)
	fields = append(fields, zap.String("comp", ev.comp), zap.String("stage", ev.stage))
	if ev.code != "" {
		fields = append(fields, zap.String("code", ev.code))
	}
	if ev.dur > 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.dur))
	}
	if ev.count > 0 {
		fields = append(fields, zap.Int64("count", ev.count))
	}
	if ev.fileID != "" {
		fields = append(fields, zap.String("file_id", ev.fileID))
	}
	if len(ev.kv) > 0 {
		fields = append(fields, zap.Object("kv", kvObject(ev.kv)))
	}
	ce.Write(fields...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", nil)
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	return l.StartWithKV(comp, msg, fileID, nil)
}

// StartWithKV 记录带 file_id 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID string, kv map[string]string) *Timer {
	if l == nil {
		return nil
	}
	l.log(zapcore.InfoLevel, event{comp: comp, stage: "start", fileID: fileID, msg: msg, kv: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// DebugStart 调试级别的 start 类事件（仅在 level=debug 时输出）。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	l.log(zapcore.DebugLevel, event{comp: comp, stage: "start", fileID: fileID, msg: msg, kv: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, nil)
}

// ErrorWithKV 支持附带键值对（例如底层错误文本）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(zapcore.ErrorLevel, event{comp: comp, stage: "error", code: code, dur: dur, fileID: fileID, msg: msg, kv: kv})
}

// Skip 以 warn 级别记录被跳过的输入。
func (l *Logger) Skip(comp, msg, fileID string, kv map[string]string) {
	l.log(zapcore.WarnLevel, event{comp: comp, stage: "skip", code: string(CodeSkip), fileID: fileID, msg: msg, kv: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zapcore.InfoLevel, event{comp: comp, stage: "finish", dur: time.Since(start).Milliseconds(), count: count, msg: msg})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish 并上报耗时指标；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	ObserveDuration(t.comp, msg, dur)
	t.l.log(zapcore.InfoLevel, event{comp: t.comp, stage: "finish", dur: dur, count: count, fileID: t.fileID, msg: msg})
}

// Since 返回计时起点（供 ErrorWith 计算时长）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
