package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"fixify/pkg/contract"
	tfilter "fixify/plugins/assembler/tagfilter"
	ocluster "fixify/plugins/orderer/cluster"
	rfs "fixify/plugins/reader/filesystem"
	sfix "fixify/plugins/splitter/fixlines"
	wfs "fixify/plugins/writer/filesystem"
	wzip "fixify/plugins/writer/ziparchive"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewSplitter 工厂签名：接收原样 JSON Options。
type NewSplitter func(raw json.RawMessage) (contract.Splitter, error)

// NewOrderer 工厂签名：接收原样 JSON Options。
type NewOrderer func(raw json.RawMessage) (contract.Orderer, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage) (contract.Assembler, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Splitter 工厂注册表。
var Splitter = map[string]NewSplitter{
	// fixlines: SOH/^A 归一化 + 按行解析
	"fixlines": func(raw json.RawMessage) (contract.Splitter, error) {
		var opts sfix.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sfix.New(&opts), nil
	},
}

// Orderer 工厂注册表。
var Orderer = map[string]NewOrderer{
	// cluster: 请求类型聚簇 + Mixed/Proper 排序
	"cluster": func(raw json.RawMessage) (contract.Orderer, error) {
		var opts ocluster.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ocluster.New(&opts)
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// tagfilter: 剔除指定 tag 后按行拼接
	"tagfilter": func(raw json.RawMessage) (contract.Assembler, error) {
		var opts tfilter.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tfilter.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 逐文件写出 processed_<name>
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// zip: 全部产物打包为 processed_FIX_files.zip
	"zip": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wzip.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wzip.New(&opts)
	},
}

// Names 返回注册表的有序键，用于帮助信息与错误提示。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
