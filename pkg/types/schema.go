package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LogicalType is the fixed set of column types spec.md §3 recognizes.
type LogicalType struct {
	Kind LogicalKind
	// Elem is the element type for Kind == KindList.
	Elem *LogicalType
	// Fields holds the member types for Kind == KindStruct, in
	// insertion order (field names live in each entry's Name).
	Fields []StructField
}

// LogicalKind enumerates the scalar and structured type tags.
type LogicalKind int

const (
	KindInt64 LogicalKind = iota
	KindFloat64
	KindUtf8
	KindBoolean
	KindTimestamp
	KindNull
	KindList
	KindStruct
)

func (k LogicalKind) String() string {
	switch k {
	case KindInt64:
		return "Int64"
	case KindFloat64:
		return "Float64"
	case KindUtf8:
		return "Utf8"
	case KindBoolean:
		return "Boolean"
	case KindTimestamp:
		return "Timestamp"
	case KindNull:
		return "Null"
	case KindList:
		return "List"
	case KindStruct:
		return "Struct"
	default:
		return "Unknown"
	}
}

// StructField is one member of a Struct{field -> type} logical type.
type StructField struct {
	Name string
	Type LogicalType
}

// Scalar type constructors.
func Int64Type() LogicalType     { return LogicalType{Kind: KindInt64} }
func Float64Type() LogicalType   { return LogicalType{Kind: KindFloat64} }
func Utf8Type() LogicalType      { return LogicalType{Kind: KindUtf8} }
func BooleanType() LogicalType   { return LogicalType{Kind: KindBoolean} }
func TimestampType() LogicalType { return LogicalType{Kind: KindTimestamp} }
func NullType() LogicalType      { return LogicalType{Kind: KindNull} }

// ListType constructs List<elem>.
func ListType(elem LogicalType) LogicalType {
	return LogicalType{Kind: KindList, Elem: &elem}
}

// StructType constructs Struct{field -> type} from an ordered field list.
func StructType(fields ...StructField) LogicalType {
	return LogicalType{Kind: KindStruct, Fields: fields}
}

// Equal reports whether two logical types are structurally identical.
func (t LogicalType) Equal(other LogicalType) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		if t.Elem == nil || other.Elem == nil {
			return t.Elem == other.Elem
		}
		return t.Elem.Equal(*other.Elem)
	case KindStruct:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for i, f := range t.Fields {
			g := other.Fields[i]
			if f.Name != g.Name || !f.Type.Equal(g.Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t LogicalType) String() string {
	switch t.Kind {
	case KindList:
		if t.Elem == nil {
			return "List<?>"
		}
		return fmt.Sprintf("List<%s>", t.Elem.String())
	case KindStruct:
		return fmt.Sprintf("Struct{%d fields}", len(t.Fields))
	default:
		return t.Kind.String()
	}
}

// column is one entry of a Schema: an insertion-ordered (name, type,
// nullable) triple.
type column struct {
	name     string
	typ      LogicalType
	nullable bool
}

// Schema is an ordered, insertion-preserving mapping from unique column
// name to logical type (spec.md §3). Schemas are immutable once built;
// every mutator returns a new Schema, matching the "shared by reference;
// updates produce new values" rule.
type Schema struct {
	columns []column
	index   map[string]int
}

// NewSchema builds an empty schema.
func NewSchema() Schema {
	return Schema{index: map[string]int{}}
}

// Names returns column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.name
	}
	return out
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.columns) }

// Has reports whether name is a column of this schema.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// TypeOf returns the logical type of name and whether it exists.
func (s Schema) TypeOf(name string) (LogicalType, bool) {
	i, ok := s.index[name]
	if !ok {
		return LogicalType{}, false
	}
	return s.columns[i].typ, true
}

// Nullable reports whether name is nullable (false if name is absent).
func (s Schema) Nullable(name string) bool {
	i, ok := s.index[name]
	if !ok {
		return false
	}
	return s.columns[i].nullable
}

// WithColumn returns a new Schema with name appended (or, if name
// already exists, with its type/nullability replaced in place).
func (s Schema) WithColumn(name string, typ LogicalType, nullable bool) Schema {
	next := s.clone()
	if i, ok := next.index[name]; ok {
		next.columns[i] = column{name: name, typ: typ, nullable: nullable}
		return next
	}
	next.index[name] = len(next.columns)
	next.columns = append(next.columns, column{name: name, typ: typ, nullable: nullable})
	return next
}

// WithoutColumns returns a new Schema with the named columns removed,
// preserving the relative order of the survivors.
func (s Schema) WithoutColumns(names ...string) Schema {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	next := NewSchema()
	for _, c := range s.columns {
		if drop[c.name] {
			continue
		}
		next = next.WithColumn(c.name, c.typ, c.nullable)
	}
	return next
}

// WithRenamed returns a new Schema with column from renamed to to,
// preserving its position, type, and nullability.
func (s Schema) WithRenamed(from, to string) Schema {
	next := NewSchema()
	for _, c := range s.columns {
		name := c.name
		if name == from {
			name = to
		}
		next = next.WithColumn(name, c.typ, c.nullable)
	}
	return next
}

// clone deep-copies the column slice and index map so mutation of the
// returned Schema never aliases the receiver's storage.
func (s Schema) clone() Schema {
	cols := make([]column, len(s.columns))
	copy(cols, s.columns)
	idx := make(map[string]int, len(s.index))
	for k, v := range s.index {
		idx[k] = v
	}
	return Schema{columns: cols, index: idx}
}

// Union merges other into s per spec.md §4.2's attach-union rules:
// columns present in both sides must be type-compatible (exact match);
// columns only on one side become nullable; column order follows s,
// with other's genuinely new columns appended afterward.
//
// ErrTypeMismatch is returned (wrapped with the column name) if a
// shared column's type differs between the two schemas.
func (s Schema) Union(other Schema) (Schema, error) {
	next := s
	for _, c := range s.columns {
		if _, ok := other.index[c.name]; !ok {
			next = next.WithColumn(c.name, c.typ, true) // only on left: nullable
		}
	}
	for _, c := range other.columns {
		if i, ok := s.index[c.name]; ok {
			left := s.columns[i]
			if !left.typ.Equal(c.typ) {
				return Schema{}, fmt.Errorf("%w: column %q: %s vs %s", ErrTypeMismatch, c.name, left.typ, c.typ)
			}
			continue // already present from the left pass
		}
		next = next.WithColumn(c.name, c.typ, true) // only on right: nullable
	}
	return next, nil
}

// ErrTypeMismatch is returned by Union when a shared column's logical
// type differs between the two sides (spec.md's Open Question: schema
// widening is not implemented, so this is always fatal today).
var ErrTypeMismatch = fmt.Errorf("schema: type mismatch")

// yamlColumn/yamlType/yamlField are Schema's YAML wire shape — an
// ordered column list, since the unexported column/index pair backing
// Schema itself isn't directly marshalable.
type yamlColumn struct {
	Name     string   `yaml:"name"`
	Type     yamlType `yaml:"type"`
	Nullable bool     `yaml:"nullable"`
}

type yamlType struct {
	Kind   string      `yaml:"kind"`
	Elem   *yamlType   `yaml:"elem,omitempty"`
	Fields []yamlField `yaml:"fields,omitempty"`
}

type yamlField struct {
	Name string   `yaml:"name"`
	Type yamlType `yaml:"type"`
}

func (t LogicalType) toYAML() yamlType {
	y := yamlType{Kind: t.Kind.String()}
	if t.Elem != nil {
		e := t.Elem.toYAML()
		y.Elem = &e
	}
	for _, f := range t.Fields {
		y.Fields = append(y.Fields, yamlField{Name: f.Name, Type: f.Type.toYAML()})
	}
	return y
}

func kindFromString(s string) (LogicalKind, error) {
	for k := KindInt64; k <= KindStruct; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("schema: unrecognized type kind %q", s)
}

func fromYAMLType(y yamlType) (LogicalType, error) {
	k, err := kindFromString(y.Kind)
	if err != nil {
		return LogicalType{}, err
	}
	t := LogicalType{Kind: k}
	if y.Elem != nil {
		elem, err := fromYAMLType(*y.Elem)
		if err != nil {
			return LogicalType{}, err
		}
		t.Elem = &elem
	}
	for _, f := range y.Fields {
		ft, err := fromYAMLType(f.Type)
		if err != nil {
			return LogicalType{}, err
		}
		t.Fields = append(t.Fields, StructField{Name: f.Name, Type: ft})
	}
	return t, nil
}

// MarshalYAML renders the schema as its ordered column list.
func (s Schema) MarshalYAML() (interface{}, error) {
	cols := make([]yamlColumn, len(s.columns))
	for i, c := range s.columns {
		cols[i] = yamlColumn{Name: c.name, Type: c.typ.toYAML(), Nullable: c.nullable}
	}
	return cols, nil
}

// UnmarshalYAML reconstructs a Schema from its ordered column list.
func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	var cols []yamlColumn
	if err := value.Decode(&cols); err != nil {
		return err
	}
	next := NewSchema()
	for _, c := range cols {
		typ, err := fromYAMLType(c.Type)
		if err != nil {
			return err
		}
		next = next.WithColumn(c.Name, typ, c.Nullable)
	}
	*s = next
	return nil
}
