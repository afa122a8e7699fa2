package contract

import (
	"fmt"

	"fixify/pkg/fix"
)

// ValidatePermutation 校验 out 为 in 的一个排列（按 Raw+Line 计数）。
// Orderer 的输出在进入 Assembler 前经此校验，违例返回 ErrInvariantViolation。
func ValidatePermutation(in, out []fix.Record) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: ordered %d records, want %d", ErrInvariantViolation, len(out), len(in))
	}
	type key struct {
		raw  string
		line int
	}
	count := make(map[key]int, len(in))
	for _, r := range in {
		count[key{r.Raw(), r.Line()}]++
	}
	for _, r := range out {
		k := key{r.Raw(), r.Line()}
		if count[k] == 0 {
			return fmt.Errorf("%w: unexpected record at line %d", ErrInvariantViolation, r.Line())
		}
		count[k]--
	}
	return nil
}
