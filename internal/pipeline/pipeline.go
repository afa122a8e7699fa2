package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fixify/internal/diag"
	"fixify/pkg/contract"
	"fixify/pkg/fix"
)

// - 单点并发：仅此层管理并发；原子组件均为同步、无内部并发。
// - 文件独立：每个文件的 拆分 → 排序 → 装配 → 写出 互不依赖，无跨文件状态。
// - 首错取消：任一文件失败即取消其余（errgroup 上下文）；返回首个错误。
// - 背压：Reader 顺序产出文件，Go 在达到并发上限时阻塞。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Splitter  contract.Splitter
	Orderer   contract.Orderer
	Assembler contract.Assembler
	Writer    contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs      []string
	Concurrency int
	// SortMode 仅用于终端与日志回显。
	SortMode string
}

// orderSettings 由可回显生效排序参数的 Orderer 实现。
type orderSettings interface {
	Settings() fix.OrderOptions
}

// Stats 为一次运行的汇总。
type Stats struct {
	Files   int64
	Skipped int64
	Records int64
}

// Run 执行 Reader → Splitter → Orderer → Assembler → Writer。
// 全部文件成功后，若 Writer 实现 io.Closer 则调用 Close 完成收尾（如归档落盘）。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Stats, error) {
	var st stats
	if err := sanity(comp, &set); err != nil {
		return Stats{}, fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	startKV := map[string]string{
		"inputs":      fmt.Sprintf("%d", len(set.Inputs)),
		"concurrency": fmt.Sprintf("%d", set.Concurrency),
	}
	if o, ok := comp.Orderer.(orderSettings); ok {
		eff := o.Settings()
		if set.SortMode == "" {
			set.SortMode = string(eff.Mode)
		}
		startKV["sort_mode"] = string(eff.Mode)
		if eff.Mode == fix.ModeMixed {
			startKV["sort_tag"] = eff.SortTag()
		}
	}
	term := diag.GetTerminal()
	term.RunStart(set.Concurrency, set.SortMode)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(set.Concurrency)

	rtimer := logger.StartWithKV("reader", "iterate", "", startKV)
	iterErr := comp.Reader.Iterate(gctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", fid, err)
		}
		g.Go(func() error { return processFile(gctx, comp, fid, data, logger, &st) })
		return gctx.Err()
	})
	runErr := g.Wait()
	if iterErr != nil {
		logFail(logger, "reader", "iterate failed", "", rtimer, iterErr)
	} else {
		rtimer.Finish("iterate", st.files.Load()+st.skipped.Load())
		diag.IncOp("reader", "iterate", "success")
	}

	// 组件错误优先于由其引发的取消
	err := runErr
	if err == nil && iterErr != nil {
		err = fmt.Errorf("reader iterate: %w", iterErr)
	}
	if err == nil {
		if c, ok := comp.Writer.(io.Closer); ok {
			ctimer := logger.Start("writer", "close")
			if cerr := c.Close(); cerr != nil {
				logFail(logger, "writer", "close failed", "", ctimer, cerr)
				err = fmt.Errorf("writer close: %w", cerr)
			} else {
				ctimer.Finish("close", 0)
			}
		}
	}
	term.RunFinish(err == nil, time.Since(runStart))
	out := st.snapshot()
	if err == nil {
		logger.InfoFinish("pipeline", "run", runStart, out.Records)
	}
	return out, err
}

// processFile 处理单个文件；ErrSkipFile 视为跳过而非失败。
func processFile(ctx context.Context, comp Components, fid contract.FileID, data []byte, logger *diag.Logger, st *stats) (err error) {
	id := string(fid)
	term := diag.GetTerminal()
	fileStart := time.Now()
	records := 0
	skipped := false
	term.FileStart(id)
	defer func() {
		if !skipped {
			term.FileFinish(id, err == nil, records, time.Since(fileStart))
		}
	}()

	stimer := logger.StartWith("splitter", "split", id)
	recs, err := comp.Splitter.Split(ctx, fid, bytes.NewReader(data))
	if errors.Is(err, contract.ErrSkipFile) {
		skipped = true
		logger.Skip("splitter", "file skipped", id, map[string]string{"reason": err.Error()})
		diag.IncOp("splitter", "split", "skip")
		term.FileSkip(id, err.Error())
		st.skipped.Add(1)
		return nil
	}
	if err != nil {
		return logFail(logger, "splitter", "split failed", id, stimer, fmt.Errorf("splitter split: %w", err))
	}
	stimer.Finish("split", int64(len(recs)))
	diag.IncOp("splitter", "split", "success")
	diag.AddRecords("splitter", len(recs))

	otimer := logger.StartWith("orderer", "order", id)
	ordered, err := comp.Orderer.Order(ctx, fid, recs)
	if err == nil {
		err = contract.ValidatePermutation(recs, ordered)
	}
	if err != nil {
		return logFail(logger, "orderer", "order failed", id, otimer, fmt.Errorf("orderer order: %w", err))
	}
	otimer.Finish("order", int64(len(ordered)))
	diag.IncOp("orderer", "order", "success")

	atimer := logger.StartWith("assembler", "assemble", id)
	r, err := comp.Assembler.Assemble(ctx, fid, ordered)
	if err != nil {
		return logFail(logger, "assembler", "assemble failed", id, atimer, fmt.Errorf("assembler assemble: %w", err))
	}
	atimer.Finish("assemble", int64(len(ordered)))
	diag.IncOp("assembler", "assemble", "success")

	wtimer := logger.StartWith("writer", "write", id)
	if err := comp.Writer.Write(ctx, contract.ArtifactID(fid), r); err != nil {
		return logFail(logger, "writer", "write failed", id, wtimer, fmt.Errorf("writer write: %w", err))
	}
	wtimer.Finish("write", 1)
	diag.IncOp("writer", "write", "success")
	diag.AddRecords("writer", len(ordered))

	records = len(ordered)
	st.files.Add(1)
	st.records.Add(int64(records))
	return nil
}

// logFail 记录错误事件与指标，原样返回 err。
func logFail(logger *diag.Logger, comp, msg, fileID string, tm *diag.Timer, err error) error {
	code := diag.Classify(err)
	logger.ErrorWithKV(comp, string(code), msg, tm.Since(), fileID, map[string]string{"err": err.Error()})
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
	return err
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil || c.Splitter == nil || c.Orderer == nil || c.Assembler == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	return nil
}

type stats struct {
	files, skipped, records atomic.Int64
}

func (s *stats) snapshot() Stats {
	return Stats{Files: s.files.Load(), Skipped: s.skipped.Load(), Records: s.records.Load()}
}
