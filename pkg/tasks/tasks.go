// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// OptimizeTask represents an asynchronous pipeline optimization job.
// Reason 记录触发来源，消费端仅用于日志。
type OptimizeTask struct {
	Reason       string `json:"reason"`
	NewModel     string `json:"new_model,omitempty"`
	ExampleCount int    `json:"example_count"`
	TriggeredAt  int64  `json:"triggered_at"`
}
