package kafka

// canal 事件类型
const (
	INSERT = "INSERT"
	UPDATE = "UPDATE"
	DELETE = "DELETE"
)

// CanalMessage 定义了 Canal 推送到 Kafka 的 JSON 数据结构
type CanalMessage struct {
	ID       int64    `json:"id"`
	Database string   `json:"database"`
	Table    string   `json:"table"`
	PKNames  []string `json:"pkNames"`
	IsDDL    bool     `json:"isDdl"`
	Type     string   `json:"type"`
	ES       int64    `json:"es"`
	TS       int64    `json:"ts"`

	// Data 变更后的行，一条消息可能包含多行
	Data []map[string]interface{} `json:"data"`

	// Old 与 Data 按下标对应，只包含被修改的列
	Old []map[string]interface{} `json:"old"`
}

// Changed 第 i 行的 column 是否在本次 UPDATE 中被修改，返回修改前的值
func (m *CanalMessage) Changed(i int, column string) (old interface{}, ok bool) {
	if i >= len(m.Old) || m.Old[i] == nil {
		return nil, false
	}
	old, ok = m.Old[i][column]
	return old, ok
}
