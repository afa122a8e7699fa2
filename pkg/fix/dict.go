package fix

// 常用 FIX tag 名称。
var tagNames = map[string]string{
	"8":  "BeginString",
	"9":  "BodyLength",
	"10": "CheckSum",
	"11": "ClOrdID",
	"17": "ExecID",
	"34": "MsgSeqNum",
	"35": "MsgType",
	"37": "OrderID",
	"38": "OrderQty",
	"39": "OrdStatus",
	"40": "OrdType",
	"41": "OrigClOrdID",
	"44": "Price",
	"49": "SenderCompID",
	"52": "SendingTime",
	"54": "Side",
	"55": "Symbol",
	"56": "TargetCompID",
	"58": "Text",
	"59": "TimeInForce",
	"60": "TransactTime",
	"150": "ExecType",
}

// 部分字段的取值含义。
var valueMeanings = map[string]map[string]string{
	"35": {
		"0":  "Heartbeat",
		"8":  "Execution Report",
		"9":  "Order Cancel Reject",
		"D":  "New Order Single",
		"F":  "Order Cancel Request",
		"G":  "Order Cancel/Replace Request",
		"J":  "Allocation Instruction",
		"AK": "Confirmation",
		"AU": "Confirmation Ack",
	},
	"54": {
		"1": "Buy",
		"2": "Sell",
	},
	"40": {
		"1": "Market",
		"2": "Limit",
	},
	"59": {
		"0": "Day",
		"1": "Good Till Cancel",
		"3": "Immediate Or Cancel",
	},
}

// TagName 返回 tag 的标准名称。
func TagName(tag string) (string, bool) {
	n, ok := tagNames[tag]
	return n, ok
}

// ValueMeaning 返回枚举字段取值的含义。
func ValueMeaning(tag, value string) (string, bool) {
	m, ok := valueMeanings[tag][value]
	return m, ok
}

// Annotation 为一个字段的可读解释；未知项留空。
type Annotation struct {
	Tag     string `json:"tag"`
	Name    string `json:"name,omitempty"`
	Value   string `json:"value"`
	Meaning string `json:"meaning,omitempty"`
}

// Explain 按字段顺序给出名称与取值含义（离线字典，不做网络请求）。
func Explain(r Record) []Annotation {
	out := make([]Annotation, 0, r.Len())
	for _, f := range r.fields {
		a := Annotation{Tag: f.Tag, Value: f.Value}
		a.Name, _ = TagName(f.Tag)
		a.Meaning, _ = ValueMeaning(f.Tag, f.Value)
		out = append(out, a)
	}
	return out
}
