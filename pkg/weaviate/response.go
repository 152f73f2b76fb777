package weaviate

import (
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate/entities/models"
)

// extractObjects 从 GraphQL 响应中取出指定 class 的对象列表。
// schema 漂移导致载荷缺失或形状不符时，统一收敛为空列表而非报错。
func extractObjects(resp *models.GraphQLResponse, class string) ([]RawObject, error) {
	if resp == nil {
		return []RawObject{}, nil
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql error: %s", resp.Errors[0].Message)
	}

	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return []RawObject{}, nil
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return []RawObject{}, nil
	}

	out := make([]RawObject, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// StringField 读取对象上的字符串字段，缺失或类型不符时返回空串。
func StringField(o RawObject, key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

// NumberField 读取对象上的数值字段，缺失时返回 0。
// GraphQL 对数值的编码不稳定（float64 或字符串），两者都接受。
func NumberField(o RawObject, key string) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

// Score 读取 _additional.score。Weaviate 将分数编码为字符串，
// 缺失时按不变式返回 0。
func Score(o RawObject) float64 {
	additional, ok := o["_additional"].(map[string]interface{})
	if !ok {
		return 0
	}
	return NumberField(additional, "score")
}
