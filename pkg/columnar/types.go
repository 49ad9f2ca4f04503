package columnar

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// DataType representa os tipos de dados suportados no sistema colunar
type DataType int

const (
	TypeUint64 DataType = iota
	TypeTimestamp
	TypeString
)

// TimestampLayout is the textual form used when rendering timestamp values.
const TimestampLayout = "2006-01-02 15:04:05"

// TimestampType is the arrow type backing TypeTimestamp columns: milliseconds since the epoch, UTC.
var TimestampType = &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}

// String retorna a representação em string do tipo
func (dt DataType) String() string {
	switch dt {
	case TypeUint64:
		return "UINT64"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ArrowType returns the arrow data type used to store columns of this type.
func (dt DataType) ArrowType() (arrow.DataType, error) {
	switch dt {
	case TypeUint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case TypeTimestamp:
		return TimestampType, nil
	case TypeString:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", dt)
	}
}

// FromArrowType maps an arrow type back to the columnar type system.
func FromArrowType(t arrow.DataType) (DataType, error) {
	switch t.ID() {
	case arrow.UINT64:
		return TypeUint64, nil
	case arrow.TIMESTAMP:
		ts := t.(*arrow.TimestampType)
		if ts.Unit != arrow.Millisecond {
			return 0, fmt.Errorf("unsupported timestamp unit: %s", ts.Unit)
		}
		return TypeTimestamp, nil
	case arrow.STRING:
		return TypeString, nil
	default:
		return 0, fmt.Errorf("unsupported arrow type: %s", t)
	}
}

// Value representa um valor genérico que pode ser de qualquer tipo suportado.
// Null marca a ausência de valor; nesse caso Data é nil.
type Value struct {
	Type DataType
	Data interface{}
	Null bool
}

// NewUint64Value cria um novo valor inteiro sem sinal
func NewUint64Value(v uint64) Value {
	return Value{Type: TypeUint64, Data: v}
}

// NewTimestampValue cria um timestamp com precisão de milissegundos
func NewTimestampValue(t time.Time) Value {
	return Value{Type: TypeTimestamp, Data: t.UTC().UnixMilli()}
}

// NewTimestampMillis cria um timestamp a partir de milissegundos desde a época
func NewTimestampMillis(ms int64) Value {
	return Value{Type: TypeTimestamp, Data: ms}
}

// NewStringValue cria um novo valor string
func NewStringValue(v string) Value {
	return Value{Type: TypeString, Data: v}
}

// NewNullValue cria um valor nulo tipado
func NewNullValue(t DataType) Value {
	return Value{Type: t, Null: true}
}

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool {
	return v.Null
}

// AsUint64 retorna o valor como uint64, ou erro se o tipo for incompatível
func (v Value) AsUint64() (uint64, error) {
	if v.Type != TypeUint64 {
		return 0, fmt.Errorf("value is not an uint64, got %s", v.Type)
	}
	if v.Null {
		return 0, fmt.Errorf("value is null")
	}
	return v.Data.(uint64), nil
}

// AsTimestampMillis retorna o timestamp em milissegundos desde a época
func (v Value) AsTimestampMillis() (int64, error) {
	if v.Type != TypeTimestamp {
		return 0, fmt.Errorf("value is not a timestamp, got %s", v.Type)
	}
	if v.Null {
		return 0, fmt.Errorf("value is null")
	}
	return v.Data.(int64), nil
}

// AsTime retorna o timestamp como time.Time em UTC
func (v Value) AsTime() (time.Time, error) {
	ms, err := v.AsTimestampMillis()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// AsString retorna o valor como string, ou erro se o tipo for incompatível
func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", fmt.Errorf("value is not a string, got %s", v.Type)
	}
	if v.Null {
		return "", fmt.Errorf("value is null")
	}
	return v.Data.(string), nil
}

// Interface returns the plain Go value (nil for nulls), suitable for JSON encoding.
func (v Value) Interface() interface{} {
	if v.Null {
		return nil
	}
	if v.Type == TypeTimestamp {
		t, _ := v.AsTime()
		return t.Format(TimestampLayout)
	}
	return v.Data
}

// String retorna a representação em string do valor
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case TypeUint64:
		return strconv.FormatUint(v.Data.(uint64), 10)
	case TypeTimestamp:
		t, _ := v.AsTime()
		return t.Format(TimestampLayout)
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}
