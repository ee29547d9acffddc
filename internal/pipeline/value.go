package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind 标识 Value 节点的具体类型。
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value 是 pipeline 配置树的节点。配置在前后端之间以 JSON 传递，
// 这里用带标签的变体类型建模，保证合并语义不依赖反射或鸭子类型。
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []Value
	obj  map[string]Value
}

// Null 返回 JSON null。
func Null() Value { return Value{kind: KindNull} }

// Bool 构造布尔节点。
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Number 构造数值节点。
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Int 构造整数值节点。
func Int(v int) Value { return Number(float64(v)) }

// String 构造字符串节点。
func String(v string) Value { return Value{kind: KindString, str: v} }

// Array 构造数组节点。
func Array(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: KindArray, arr: arr}
}

// Strings 构造字符串数组节点。
func Strings(items ...string) Value {
	arr := make([]Value, 0, len(items))
	for _, s := range items {
		arr = append(arr, String(s))
	}
	return Value{kind: KindArray, arr: arr}
}

// Object 构造对象节点，fields 会被浅拷贝。
func Object(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{kind: KindObject, obj: obj}
}

// Kind 返回节点类型。
func (v Value) Kind() Kind { return v.kind }

// IsNull 判断是否为 null 节点。
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsObject 判断是否为对象节点。
func (v Value) IsObject() bool { return v.kind == KindObject }

// BoolVal 返回布尔值，第二个返回值表示节点是否为布尔类型。
func (v Value) BoolVal() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Float 返回数值，第二个返回值表示节点是否为数值类型。
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str 返回字符串值，第二个返回值表示节点是否为字符串类型。
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Items 返回数组元素的拷贝。
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out
}

// Get 返回对象中指定键的子节点。
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	child, ok := v.obj[key]
	return child, ok
}

// Keys 返回对象键的有序列表。
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len 返回数组长度或对象键数。
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Clone 深拷贝节点。
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, item := range v.arr {
			arr[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: arr}
	case KindObject:
		obj := make(map[string]Value, len(v.obj))
		for k, child := range v.obj {
			obj[k] = child.Clone()
		}
		return Value{kind: KindObject, obj: obj}
	default:
		return v
	}
}

// Equal 判断两棵配置树结构相等。
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.num == other.num
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, child := range v.obj {
			peer, ok := other.obj[k]
			if !ok || !child.Equal(peer) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// DeepMerge 把 patch 叠加到 base 上并返回新树：两侧同为对象时按键递归合并，
// 其余情况（包括任一侧是数组）一律用 patch 整体替换。
func DeepMerge(base, patch Value) Value {
	if base.kind != KindObject || patch.kind != KindObject {
		return patch.Clone()
	}
	merged := make(map[string]Value, len(base.obj)+len(patch.obj))
	for k, child := range base.obj {
		merged[k] = child.Clone()
	}
	for k, pv := range patch.obj {
		if bv, ok := merged[k]; ok && bv.kind == KindObject && pv.kind == KindObject {
			merged[k] = DeepMerge(bv, pv)
			continue
		}
		merged[k] = pv.Clone()
	}
	return Value{kind: KindObject, obj: merged}
}

// FromAny 把 encoding/json 或 yaml 解码出的动态值转换为 Value。
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []any:
		arr := make([]Value, 0, len(t))
		for _, item := range t {
			child, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, child)
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			child, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			obj[k] = child
		}
		return Value{kind: KindObject, obj: obj}, nil
	default:
		return Value{}, fmt.Errorf("unsupported config value type %T", raw)
	}
}

// ToAny 还原为动态值，供 json.Marshal 与 schema 校验使用。
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, item := range v.arr {
			out = append(out, item.ToAny())
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, child := range v.obj {
			out[k] = child.ToAny()
		}
		return out
	default:
		return nil
	}
}

// FromJSON 解析一段 JSON 为配置树。
func FromJSON(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	return FromAny(raw)
}

// MarshalJSON 实现 json.Marshaler。
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return nil, fmt.Errorf("non-finite number is not valid JSON")
	}
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON 实现 json.Unmarshaler。
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
