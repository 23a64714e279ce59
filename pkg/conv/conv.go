// Package conv 提供类型转换、map 转换等泛型工具，用于简化各模块中的宽松解析逻辑。
package conv

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ParseFloat 宽松地将 any 转为有限的 float64。
//
// 在 ToFloat64 的基础上额外支持数字字符串与 json.Number；
// 无法解析或结果为 NaN / ±Inf 时返回 (0, false)。
func ParseFloat(v any) (float64, bool) {
	var (
		f  float64
		ok bool
	)
	switch val := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		f, ok = parsed, err == nil
	case json.Number:
		parsed, err := val.Float64()
		f, ok = parsed, err == nil
	default:
		f, ok = ToFloat64(v)
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ConvertMap 将 map[K]V1 按 convert 转为 map[K]V2，convert 返回 false 的条目被跳过。
func ConvertMap[K comparable, V1, V2 any](m map[K]V1, convert func(V1) (V2, bool)) map[K]V2 {
	if m == nil {
		return nil
	}
	out := make(map[K]V2, len(m))
	for k, v := range m {
		if v2, ok := convert(v); ok {
			out[k] = v2
		}
	}
	return out
}

// MapToFloat64 将 map[string]any 转为 map[string]float64，仅保留可解析为有限 float64 的 value。
func MapToFloat64(m map[string]any) map[string]float64 {
	return ConvertMap(m, ParseFloat)
}
