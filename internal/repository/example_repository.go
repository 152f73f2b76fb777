// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"verona-ai-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const exampleKey = "pipeline:training_examples"

// ExampleRepository 定义了训练范例的持久化操作。
// 范例本体保存在优化器内存中，这里只做跨重启的镜像：
// 写失败不影响请求链路，读失败视同空集。
type ExampleRepository interface {
	SaveExamples(ctx context.Context, examples []model.TrainingExample) error
	LoadExamples(ctx context.Context) ([]model.TrainingExample, error)
}

type redisExampleRepository struct {
	redisClient *redis.Client
}

// NewExampleRepository 创建一个新的 ExampleRepository 实例。
func NewExampleRepository(redisClient *redis.Client) ExampleRepository {
	return &redisExampleRepository{redisClient: redisClient}
}

// SaveExamples 把整份范例集序列化后覆盖写入。
// 范例集上限 100 条，整体读写比增量结构简单且足够小。
func (r *redisExampleRepository) SaveExamples(ctx context.Context, examples []model.TrainingExample) error {
	jsonData, err := json.Marshal(examples)
	if err != nil {
		return fmt.Errorf("failed to marshal training examples: %w", err)
	}
	if err := r.redisClient.Set(ctx, exampleKey, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to save training examples: %w", err)
	}
	return nil
}

// LoadExamples 读取范例集，键不存在时返回空集。
func (r *redisExampleRepository) LoadExamples(ctx context.Context) ([]model.TrainingExample, error) {
	jsonData, err := r.redisClient.Get(ctx, exampleKey).Result()
	if err == redis.Nil {
		return []model.TrainingExample{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load training examples: %w", err)
	}
	var examples []model.TrainingExample
	if err := json.Unmarshal([]byte(jsonData), &examples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal training examples: %w", err)
	}
	return examples, nil
}
