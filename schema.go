package kiln

import "sort"

// Primitive is one of the eight element types a column can hold.
type Primitive uint8

const (
	F64 Primitive = iota
	F32
	I32
	U32
	I16
	U16
	I8
	U8
)

// Size returns the primitive's width in bytes.
func (p Primitive) Size() int {
	switch p {
	case F64:
		return 8
	case F32, I32, U32:
		return 4
	case I16, U16:
		return 2
	case I8, U8:
		return 1
	default:
		return 0
	}
}

// bits returns the primitive's width in bits, used to bound enum/bitmask
// value counts: integer sizing must obey the representation's bounds.
func (p Primitive) bits() int { return p.Size() * 8 }

func (p Primitive) String() string {
	switch p {
	case F64:
		return "f64"
	case F32:
		return "f32"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I8:
		return "i8"
	case U8:
		return "u8"
	default:
		return "unknown"
	}
}

// FieldKind names a schema field's representation.
type FieldKind int

const (
	KindPrimitive FieldKind = iota
	KindEnum
	KindBitmask
	KindArray
	KindFixedString
	KindInternedString
)

// FieldDecl is one field of a component's declarative schema.
type FieldDecl struct {
	Name string
	Kind FieldKind

	// Of is the element/backing primitive for Primitive, Enum, Bitmask,
	// and Array fields.
	Of Primitive

	// Values names the enum/bitmask members, in declaration order; the
	// index (enum) or bit position (bitmask) is derived from that order.
	Values []string

	// Capacity is N for Array and FixedString fields.
	Capacity int

	// CountType overrides the default u8 width of an array's implicit
	// <field>_count column.
	CountType Primitive
}

// Schema is a component type's declarative layout input. An AoS schema (no
// declared fields) stores the component as one opaque handle column. A
// schema with zero Fields and AoS=false is a tag: zero columns,
// presence-only.
type Schema struct {
	AoS    bool
	Fields []FieldDecl
}

// TagSchema declares a zero-column, presence-only component type.
func TagSchema() Schema { return Schema{} }

// AoSSchema declares a schema-less component type, stored as a single
// handle-table reference column.
func AoSSchema() Schema { return Schema{AoS: true} }

// ColumnDescriptor is one physical column produced by the schema parser.
type ColumnDescriptor struct {
	Name      string // physical column name, e.g. "items2" or "label_offset"
	Field     string // logical field this column belongs to
	Elem      Primitive
	Sub       string // "", "count", "offset", "length", or an array index as string
}

// Layout is C2's output: the memory layout descriptor for one component
// type.
type Layout struct {
	Tag bool
	AoS bool

	Columns []ColumnDescriptor

	// EnumIndex[field][name] = index; EnumNames[field][index] = name.
	EnumIndex map[string]map[string]int
	EnumNames map[string][]string

	// BitmaskBit[field][name] = bit position (value is 1<<bit).
	BitmaskBit map[string]map[string]uint8

	// ArrayCapacity[field] = N, for Array and FixedString fields.
	ArrayCapacity map[string]int
}

// ByteSize is the total per-row byte size of every column in the layout,
// excluding the chunk-level dirty-tick column).
func (l *Layout) ByteSize() int {
	total := 0
	for _, c := range l.Columns {
		total += c.Elem.Size()
	}
	if l.AoS {
		total += U32.Size() // handle-table index
	}
	return total
}

// ParseSchema expands a declarative Schema into a deterministic Layout.
// Two equivalent schemas always yield identical layouts: fields are
// sorted by name before expansion.
func ParseSchema(componentName string, schema Schema) (*Layout, error) {
	if schema.AoS {
		return &Layout{AoS: true}, nil
	}
	if len(schema.Fields) == 0 {
		return &Layout{Tag: true}, nil
	}

	fields := make([]FieldDecl, len(schema.Fields))
	copy(fields, schema.Fields)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	l := &Layout{
		EnumIndex:     make(map[string]map[string]int),
		EnumNames:     make(map[string][]string),
		BitmaskBit:    make(map[string]map[string]uint8),
		ArrayCapacity: make(map[string]int),
	}

	for _, f := range fields {
		switch f.Kind {
		case KindPrimitive:
			l.Columns = append(l.Columns, ColumnDescriptor{Name: f.Name, Field: f.Name, Elem: f.Of})

		case KindEnum:
			if len(f.Values) > (1 << f.Of.bits()) {
				return nil, InvalidSchemaError{Name: componentName, Reason: f.Name + ": too many enum values for " + f.Of.String()}
			}
			idx := make(map[string]int, len(f.Values))
			for i, v := range f.Values {
				idx[v] = i
			}
			l.EnumIndex[f.Name] = idx
			l.EnumNames[f.Name] = append([]string(nil), f.Values...)
			l.Columns = append(l.Columns, ColumnDescriptor{Name: f.Name, Field: f.Name, Elem: f.Of})

		case KindBitmask:
			if len(f.Values) > f.Of.bits() {
				return nil, InvalidSchemaError{Name: componentName, Reason: f.Name + ": too many bitmask values for " + f.Of.String()}
			}
			bits := make(map[string]uint8, len(f.Values))
			for i, v := range f.Values {
				bits[v] = uint8(i)
			}
			l.BitmaskBit[f.Name] = bits
			l.Columns = append(l.Columns, ColumnDescriptor{Name: f.Name, Field: f.Name, Elem: f.Of})

		case KindArray:
			if f.Capacity <= 0 {
				return nil, InvalidSchemaError{Name: componentName, Reason: f.Name + ": array capacity must be positive"}
			}
			l.ArrayCapacity[f.Name] = f.Capacity
			for i := 0; i < f.Capacity; i++ {
				l.Columns = append(l.Columns, ColumnDescriptor{
					Name: arrayElemName(f.Name, i), Field: f.Name, Elem: f.Of, Sub: arrayElemSub(i),
				})
			}
			countType := f.CountType
			if countType == 0 {
				countType = U8
			}
			l.Columns = append(l.Columns, ColumnDescriptor{
				Name: f.Name + "_count", Field: f.Name, Elem: countType, Sub: "count",
			})

		case KindFixedString:
			if f.Capacity <= 0 {
				return nil, InvalidSchemaError{Name: componentName, Reason: f.Name + ": string capacity must be positive"}
			}
			l.ArrayCapacity[f.Name] = f.Capacity
			for i := 0; i < f.Capacity; i++ {
				l.Columns = append(l.Columns, ColumnDescriptor{
					Name: arrayElemName(f.Name, i), Field: f.Name, Elem: U8, Sub: arrayElemSub(i),
				})
			}

		case KindInternedString:
			l.Columns = append(l.Columns,
				ColumnDescriptor{Name: f.Name + "_offset", Field: f.Name, Elem: U32, Sub: "offset"},
				ColumnDescriptor{Name: f.Name + "_length", Field: f.Name, Elem: U32, Sub: "length"},
			)

		default:
			return nil, InvalidSchemaError{Name: componentName, Reason: f.Name + ": unknown field kind"}
		}
	}

	return l, nil
}

func arrayElemName(field string, i int) string {
	return field + itoa(i)
}

func arrayElemSub(i int) string {
	return itoa(i)
}

// itoa avoids importing strconv for a single hot path; kept tiny and
// allocation-light since it only runs at registration time.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	n := i
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// Equal reports whether two layouts describe the same physical memory
// shape, used by the registry to detect a non-equal duplicate registration.
func (l *Layout) Equal(other *Layout) bool {
	if l.Tag != other.Tag || l.AoS != other.AoS {
		return false
	}
	if len(l.Columns) != len(other.Columns) {
		return false
	}
	for i := range l.Columns {
		if l.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}
