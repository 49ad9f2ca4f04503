package columnar

import (
	"fmt"
	"strings"
)

// Compare ordena dois valores não nulos do mesmo tipo: -1, 0 ou 1.
func Compare(left, right Value) (int, error) {
	if left.Null || right.Null {
		return 0, fmt.Errorf("cannot compare null values")
	}
	if left.Type != right.Type {
		return 0, fmt.Errorf("incompatible types (%s vs %s)", left.Type, right.Type)
	}
	switch left.Type {
	case TypeUint64:
		return compareOrdered(left.Data.(uint64), right.Data.(uint64)), nil
	case TypeTimestamp:
		return compareOrdered(left.Data.(int64), right.Data.(int64)), nil
	case TypeString:
		return strings.Compare(left.Data.(string), right.Data.(string)), nil
	default:
		return 0, fmt.Errorf("type %s not comparable", left.Type)
	}
}

// CompareNullsLast é Compare com nulos tratados como maiores que qualquer valor.
func CompareNullsLast(left, right Value) int {
	switch {
	case left.Null && right.Null:
		return 0
	case left.Null:
		return 1
	case right.Null:
		return -1
	}
	cmp, err := Compare(left, right)
	if err != nil {
		return 0
	}
	return cmp
}

func compareOrdered[T uint64 | int64](l, r T) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}
