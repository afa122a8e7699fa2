package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"fixify/pkg/contract"
	"fixify/plugins/assembler/tagfilter"
	ocluster "fixify/plugins/orderer/cluster"
	fsreader "fixify/plugins/reader/filesystem"
	"fixify/plugins/splitter/fixlines"
)

// discardWriter 丢弃所有输出，避免磁盘开销。
type discardWriter struct{}

func (discardWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// writeSessionFiles 生成 n 个各含 lines 行的模拟会话日志。
func writeSessionFiles(b *testing.B, n, lines int) string {
	b.Helper()
	dir := b.TempDir()
	types := []string{"D", "8", "8", "F", "8", "G", "8"}
	for i := 0; i < n; i++ {
		var sb strings.Builder
		for j := 0; j < lines; j++ {
			fmt.Fprintf(&sb, "8=FIX.4.4\x0135=%s\x0152=20240101-10:%02d:%02d\x0111=C%d\x0137=O%d\x0110=000\x01\n",
				types[j%len(types)], (j/60)%60, j%60, j/len(types), j)
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("s%03d.log", i)), []byte(sb.String()), 0o644); err != nil {
			b.Fatalf("write: %v", err)
		}
	}
	return dir
}

// BenchmarkPipeline 测试完整流水线的性能。
func BenchmarkPipeline(b *testing.B) {
	dir := writeSessionFiles(b, 16, 2000)
	for _, c := range []int{1, runtime.NumCPU()} {
		b.Run(fmt.Sprintf("C=%d", c), func(b *testing.B) {
			ord, err := ocluster.New(&ocluster.Options{SortMode: "Mixed"})
			if err != nil {
				b.Fatalf("orderer: %v", err)
			}
			comp := Components{
				Reader:    fsreader.New(nil),
				Splitter:  fixlines.New(nil),
				Orderer:   ord,
				Assembler: tagfilter.New(&tagfilter.Options{DisallowedTags: []string{"10"}}),
				Writer:    discardWriter{},
			}
			set := Settings{Inputs: []string{dir}, Concurrency: c}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Run(context.Background(), comp, set, nil); err != nil {
					b.Fatalf("run: %v", err)
				}
			}
		})
	}
}
