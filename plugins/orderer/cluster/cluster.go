package cluster

import (
	"context"
	"fmt"

	"fixify/pkg/contract"
	"fixify/pkg/fix"
)

// Options 为聚簇排序器的配置（JSON 严格解码）。
type Options struct {
	// SortMode: "Mixed"（按簇首排序键稳定排序）或 "Proper"（整体反转）。缺省 Mixed。
	SortMode string `json:"sort_mode"`
	// UsePrimaryTag: true 时按 PrimaryTag 排序，否则按 SecondaryTag。缺省 true。
	UsePrimaryTag *bool  `json:"use_primary_tag"`
	PrimaryTag    string `json:"primary_tag"`
	SecondaryTag  string `json:"secondary_tag"`
	// RequestTypes: 触发新簇的 35 取值；为空使用 D,G,F,J,AK,AU。
	RequestTypes []string `json:"request_types"`
}

// Orderer 将单文件记录聚簇后按配置排序。无状态，可并发使用。
type Orderer struct {
	opts         fix.OrderOptions
	requestTypes fix.TagSet
}

// New 校验并创建排序器；未知排序模式返回 ErrInvalidInput。
func New(o *Options) (*Orderer, error) {
	opts := fix.DefaultOrderOptions()
	rt := fix.DefaultRequestTypes()
	if o != nil {
		mode, err := fix.ParseSortMode(o.SortMode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
		}
		opts.Mode = mode
		if o.UsePrimaryTag != nil {
			opts.UsePrimary = *o.UsePrimaryTag
		}
		if o.PrimaryTag != "" {
			opts.PrimaryTag = o.PrimaryTag
		}
		if o.SecondaryTag != "" {
			opts.SecondaryTag = o.SecondaryTag
		}
		if len(o.RequestTypes) > 0 {
			rt = fix.NewTagSet(o.RequestTypes...)
		}
	}
	return &Orderer{opts: opts, requestTypes: rt}, nil
}

// Settings 返回生效的排序参数（用于日志回显）。
func (c *Orderer) Settings() fix.OrderOptions { return c.opts }

// Order 聚簇并排序；结果为入参的一个排列。
func (c *Orderer) Order(ctx context.Context, _ contract.FileID, records []fix.Record) ([]fix.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return fix.Order(fix.GroupClusters(records, c.requestTypes), c.opts), nil
}
