package extensibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/comalice/rtkernel"
)

// Vars is a workspace that expression guards can read.
type Vars map[string]any

// Lookuper is implemented by workspaces exposing named values to
// expression guards.
type Lookuper interface {
	Lookup(key string) (any, bool)
}

func (v Vars) Lookup(key string) (any, bool) {
	val, ok := v[key]
	return val, ok
}

// PayloadKey names the payload of the event being guarded.
const PayloadKey = "payload"

type guardOp uint8

const (
	opEq guardOp = iota
	opNe
	opGt
	opLt
	opGe
	opLe
)

var guardOps = map[string]guardOp{
	"==": opEq,
	"!=": opNe,
	">":  opGt,
	"<":  opLt,
	">=": opGe,
	"<=": opLe,
}

// ParseGuard compiles a simple "key op value" expression, such as
// "temp > 30" or "armed == true", into a guard. Keys are looked up in the
// machine's workspace, which must be Vars or implement Lookuper; the key
// "payload" reads the event payload instead. value is true, false, nil, a
// number, or a bare word compared as a string. Missing keys and mismatched
// types make the guard fail.
func ParseGuard(expr string) (rtkernel.Guard, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return nil, fmt.Errorf("guard %q: want \"key op value\"", expr)
	}
	key, opStr, lit := parts[0], parts[1], parts[2]
	op, ok := guardOps[opStr]
	if !ok {
		return nil, fmt.Errorf("guard %q: unknown operator %s", expr, opStr)
	}
	num, numErr := strconv.ParseFloat(lit, 64)
	isNum := numErr == nil
	if op != opEq && op != opNe && !isNum {
		return nil, fmt.Errorf("guard %q: %s needs a number", expr, opStr)
	}

	return func(m *rtkernel.Machine, e *rtkernel.Event) bool {
		v, ok := lookup(m, e, key)
		if !ok {
			return false
		}
		switch op {
		case opEq:
			return equal(v, lit, num, isNum)
		case opNe:
			return !equal(v, lit, num, isNum)
		}
		f, ok := toFloat(v)
		if !ok {
			return false
		}
		switch op {
		case opGt:
			return f > num
		case opLt:
			return f < num
		case opGe:
			return f >= num
		default:
			return f <= num
		}
	}, nil
}

// MustParseGuard is ParseGuard for expressions fixed at compile time.
func MustParseGuard(expr string) rtkernel.Guard {
	g, err := ParseGuard(expr)
	if err != nil {
		panic(err)
	}
	return g
}

func lookup(m *rtkernel.Machine, e *rtkernel.Event, key string) (any, bool) {
	if key == PayloadKey {
		return e.Payload, true
	}
	switch ws := m.Workspace().(type) {
	case Lookuper:
		return ws.Lookup(key)
	case map[string]any:
		return Vars(ws).Lookup(key)
	default:
		return nil, false
	}
}

func equal(v any, lit string, num float64, isNum bool) bool {
	switch lit {
	case "true":
		return v == true
	case "false":
		return v == false
	case "nil":
		return v == nil
	}
	if isNum {
		f, ok := toFloat(v)
		return ok && f == num
	}
	s, ok := v.(string)
	return ok && s == lit
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
