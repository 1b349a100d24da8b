// Package utils holds small helpers shared by the master and worker binaries.
package utils

import (
	"github.com/bytedance/sonic"
)

// json is the codec used on both HTTP surfaces. ConfigStd keeps
// encoding/json semantics: case-insensitive field matching on decode and
// HTML-safe output on encode.
var json = sonic.ConfigStd

// Marshal 将对象序列化为JSON字节数组
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalString 将对象序列化为JSON字符串
func MarshalString(v any) (string, error) {
	return json.MarshalToString(v)
}

// Unmarshal 将JSON字节数组解析到指定对象
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// FromJSONBytes 将JSON字节数组转换为对象
func FromJSONBytes[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// Valid 验证是否为有效的JSON
func Valid(data []byte) bool {
	return json.Valid(data)
}
