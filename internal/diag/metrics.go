package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 指标（私有注册表，不暴露 HTTP 端点；按需落盘为 textfile）：
// - fixify_op_total{comp,stage,result}
// - fixify_error_total{comp,code}
// - fixify_op_duration_ms{comp,stage}
// - fixify_records_total{comp}
var (
	registry = prometheus.NewRegistry()

	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixify",
		Name:      "op_total",
		Help:      "Component operations by stage and result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixify",
		Name:      "error_total",
		Help:      "Component errors by classification code.",
	}, []string{"comp", "code"})

	opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fixify",
		Name:      "op_duration_ms",
		Help:      "Component stage duration in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"comp", "stage"})

	recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixify",
		Name:      "records_total",
		Help:      "Records handled per component.",
	}, []string{"comp"})
)

func init() {
	registry.MustRegister(opTotal, errorTotal, opDuration, recordsTotal)
}

// Registry 返回进程内指标注册表。
func Registry() *prometheus.Registry { return registry }

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	errorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// AddRecords 累加组件处理的记录数。
func AddRecords(comp string, n int) {
	if n > 0 {
		recordsTotal.WithLabelValues(comp).Add(float64(n))
	}
}

// WriteMetrics 以 Prometheus textfile 格式原子写出全部指标。
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
