package topic

// Timestamp types reported with a consumed message.
const (
	TimestampCreateTime    = `CreateTime`
	TimestampLogAppendTime = `LogAppendTime`
	TimestampNone          = `NoTimestampType`
)

// Message is one consumed record. Messages are never modified after they are received.
type Message struct {
	Partition     int32             `json:"partition"`
	Offset        int64             `json:"offset"`
	Timestamp     int64             `json:"timestamp"`
	TimestampType string            `json:"timestampType"`
	Key           string            `json:"key"`
	Headers       map[string]string `json:"headers"`
	Content       string            `json:"content"`
}
