package contract

import "errors"

// 最小错误分类（用于上层策略判定与退出码映射）。
var (
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidInput: 边界处拒绝的输入（非文本、参数缺失等）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrSkipFile: 该文件不在处理范围内（扩展名不符等）；流水线跳过，不算失败。
	ErrSkipFile = errors.New("skip file")
)
