package value

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// stringBox, arrayBox and dictBox give string/array/dict Values shared
// ownership with interior mutability: copying a Value copies the pointer,
// not the payload, matching the container variants described in the data
// model. Callers that need value semantics (array push-by-value, a
// promise's delivered payload, process-message argument passing) call
// Clone explicitly.
type stringBox struct {
	s string
}

type arrayBox struct {
	mu    sync.Mutex
	elems []Value
}

type dictBox struct {
	mu   sync.Mutex
	keys []string
	vals map[string]Value
}

// Value is a tagged variant over nil, bool, i64, f64, string, array, dict,
// process handle, promise handle, function handle, type descriptor and a
// signed 32-bit jump offset. Zero value is Nil().
type Value struct {
	tag  Tag
	num  int64 // bool/int/jump-offset/process-id/promise-id/function-id
	fnum float64
	str  *stringBox
	arr  *arrayBox
	dict *dictBox
	typ  *Type
}

func Nil() Value { return Value{tag: TagNil} }

func Bool(b bool) Value {
	var n int64
	if b {
		n = 1
	}
	return Value{tag: TagBool, num: n}
}

func Int(i int64) Value { return Value{tag: TagInt, num: i} }

func Float(f float64) Value { return Value{tag: TagFloat, fnum: f} }

func String(s string) Value { return Value{tag: TagString, str: &stringBox{s: s}} }

// Array takes ownership of a copy of elems; the caller's slice is left
// untouched so callers can build literals with a local slice and hand it
// off without aliasing.
func Array(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{tag: TagArray, arr: &arrayBox{elems: cp}}
}

func EmptyDict() Value {
	return Value{tag: TagDict, dict: &dictBox{vals: make(map[string]Value)}}
}

func Process(id int64) Value { return Value{tag: TagProcess, num: id} }

func Promise(id int64) Value { return Value{tag: TagPromise, num: id} }

func Function(id int64) Value { return Value{tag: TagFunction, num: id} }

func TypeValue(t *Type) Value { return Value{tag: TagType, typ: t} }

func Jump(offset int32) Value { return Value{tag: TagJump, num: int64(offset)} }

func (v Value) Tag() Tag  { return v.tag }
func (v Value) IsNil() bool { return v.tag == TagNil }

func (v Value) AsBool() bool { return v.num != 0 }
func (v Value) AsInt() int64 { return v.num }
func (v Value) AsFloat() float64 { return v.fnum }

func (v Value) AsString() string {
	if v.str == nil {
		return ""
	}
	return v.str.s
}

func (v Value) ProcessID() int64  { return v.num }
func (v Value) PromiseID() int64  { return v.num }
func (v Value) FunctionID() int64 { return v.num }
func (v Value) JumpOffset() int32 { return int32(v.num) }
func (v Value) AsType() *Type     { return v.typ }

// Len reports the element/key count of an array or dict, or 0 otherwise.
func (v Value) Len() int {
	switch v.tag {
	case TagArray:
		v.arr.mu.Lock()
		defer v.arr.mu.Unlock()
		return len(v.arr.elems)
	case TagDict:
		v.dict.mu.Lock()
		defer v.dict.mu.Unlock()
		return len(v.dict.keys)
	case TagString:
		return len(v.AsString())
	default:
		return 0
	}
}

// ArrayGet returns the i'th element (0-based). ok is false on
// IndexOutOfBounds or if v is not an array.
func (v Value) ArrayGet(i int) (elem Value, ok bool) {
	if v.tag != TagArray {
		return Nil(), false
	}
	v.arr.mu.Lock()
	defer v.arr.mu.Unlock()
	if i < 0 || i >= len(v.arr.elems) {
		return Nil(), false
	}
	return v.arr.elems[i], true
}

// ArraySet overwrites the i'th element in place (shared-ownership
// mutation — every alias of this array observes the change).
func (v Value) ArraySet(i int, elem Value) bool {
	if v.tag != TagArray {
		return false
	}
	v.arr.mu.Lock()
	defer v.arr.mu.Unlock()
	if i < 0 || i >= len(v.arr.elems) {
		return false
	}
	v.arr.elems[i] = elem
	return true
}

// ArrayPush appends elem in place, matching StoreArrayElement's
// move-if-temp / copy-otherwise contract is handled by the caller passing
// elem already cloned when required.
func (v Value) ArrayPush(elem Value) bool {
	if v.tag != TagArray {
		return false
	}
	v.arr.mu.Lock()
	defer v.arr.mu.Unlock()
	v.arr.elems = append(v.arr.elems, elem)
	return true
}

// ArrayPop removes and returns the last element. ok is false on an empty
// or non-array value.
func (v Value) ArrayPop() (elem Value, ok bool) {
	if v.tag != TagArray {
		return Nil(), false
	}
	v.arr.mu.Lock()
	defer v.arr.mu.Unlock()
	n := len(v.arr.elems)
	if n == 0 {
		return Nil(), false
	}
	elem = v.arr.elems[n-1]
	v.arr.elems = v.arr.elems[:n-1]
	return elem, true
}

// ArrayClear empties the array in place.
func (v Value) ArrayClear() bool {
	if v.tag != TagArray {
		return false
	}
	v.arr.mu.Lock()
	defer v.arr.mu.Unlock()
	v.arr.elems = v.arr.elems[:0]
	return true
}

// ArrayElements returns a snapshot copy of the array's elements.
func (v Value) ArrayElements() []Value {
	if v.tag != TagArray {
		return nil
	}
	v.arr.mu.Lock()
	defer v.arr.mu.Unlock()
	out := make([]Value, len(v.arr.elems))
	copy(out, v.arr.elems)
	return out
}

// DictGet looks a key up by string. ok is false on KeyNotFound or if v is
// not a dict.
func (v Value) DictGet(key string) (val Value, ok bool) {
	if v.tag != TagDict {
		return Nil(), false
	}
	v.dict.mu.Lock()
	defer v.dict.mu.Unlock()
	val, ok = v.dict.vals[key]
	return val, ok
}

// DictSet inserts or overwrites key in place (shared-ownership mutation).
func (v Value) DictSet(key string, val Value) bool {
	if v.tag != TagDict {
		return false
	}
	v.dict.mu.Lock()
	defer v.dict.mu.Unlock()
	if _, exists := v.dict.vals[key]; !exists {
		v.dict.keys = append(v.dict.keys, key)
	}
	v.dict.vals[key] = val
	return true
}

// DictKeys returns the dict's keys in insertion order.
func (v Value) DictKeys() []string {
	if v.tag != TagDict {
		return nil
	}
	v.dict.mu.Lock()
	defer v.dict.mu.Unlock()
	out := make([]string, len(v.dict.keys))
	copy(out, v.dict.keys)
	return out
}

// Clone deep-copies container payloads (string/array/dict); scalar tags
// are returned unchanged since they already have value semantics. Used by
// get_value on a promise payload and by process-message argument passing,
// where single-writer semantics must be preserved across the copy.
func (v Value) Clone() Value {
	switch v.tag {
	case TagString:
		return String(v.AsString())
	case TagArray:
		v.arr.mu.Lock()
		elems := make([]Value, len(v.arr.elems))
		for i, e := range v.arr.elems {
			elems[i] = e.Clone()
		}
		v.arr.mu.Unlock()
		return Array(elems)
	case TagDict:
		out := EmptyDict()
		for _, k := range v.DictKeys() {
			val, _ := v.DictGet(k)
			out.DictSet(k, val.Clone())
		}
		return out
	default:
		return v
	}
}

// Equal implements Value equality. String equality compares the shared
// pointer first (fast path for interned/identical strings) then falls
// back to content comparison, per the Concat/StringCopy contract.
func (v Value) Equal(other Value) bool {
	if v.tag != other.tag {
		return false
	}
	switch v.tag {
	case TagNil:
		return true
	case TagBool, TagProcess, TagPromise, TagFunction, TagJump:
		return v.num == other.num
	case TagInt:
		return v.num == other.num
	case TagFloat:
		return v.fnum == other.fnum
	case TagString:
		if v.str == other.str {
			return true
		}
		return v.AsString() == other.AsString()
	case TagArray:
		a, b := v.ArrayElements(), other.ArrayElements()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case TagDict:
		ak, bk := v.DictKeys(), other.DictKeys()
		if len(ak) != len(bk) {
			return false
		}
		for _, k := range ak {
			av, _ := v.DictGet(k)
			bv, ok := other.DictGet(k)
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	case TagType:
		return v.typ == other.typ
	default:
		return false
	}
}

// Truthy implements MOO/Eople truthiness: nil and zero-valued scalars are
// false; empty containers are false; everything else is true.
func (v Value) Truthy() bool {
	switch v.tag {
	case TagNil:
		return false
	case TagBool:
		return v.num != 0
	case TagInt:
		return v.num != 0
	case TagFloat:
		return v.fnum != 0
	case TagString:
		return v.AsString() != ""
	case TagArray, TagDict:
		return v.Len() != 0
	default:
		return true
	}
}

// String returns the literal representation used by to_string and print.
func (v Value) String() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagBool:
		return strconv.FormatBool(v.num != 0)
	case TagInt:
		return strconv.FormatInt(v.num, 10)
	case TagFloat:
		return strconv.FormatFloat(v.fnum, 'g', -1, 64)
	case TagString:
		return v.AsString()
	case TagArray:
		parts := make([]string, 0, v.Len())
		for _, e := range v.ArrayElements() {
			parts = append(parts, e.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TagDict:
		parts := make([]string, 0, v.Len())
		for _, k := range v.DictKeys() {
			val, _ := v.DictGet(k)
			parts = append(parts, fmt.Sprintf("%s: %s", k, val.String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TagProcess:
		return fmt.Sprintf("process#%d", v.num)
	case TagPromise:
		return fmt.Sprintf("promise#%d", v.num)
	case TagFunction:
		return fmt.Sprintf("function#%d", v.num)
	case TagType:
		if v.typ == nil {
			return "type<?>"
		}
		return v.typ.String()
	case TagJump:
		return fmt.Sprintf("jump(%d)", v.JumpOffset())
	default:
		return "?"
	}
}
