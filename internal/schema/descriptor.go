// Package schema holds static per-entity column descriptors.
//
// A Descriptor is built once per entity type at package init and never mutated afterwards.
// The repository engine consults it to decide which filter keys and sort fields are valid,
// so that no reflection is needed on the query path.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type int

const (
	String Type = iota
	Text
	Int
	Float
	Bool
	Time
	UUID
	JSON
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Text:
		return "text"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	case UUID:
		return "uuid"
	case JSON:
		return "json"
	}
	return "unknown"
}

// OnDelete rules for foreign keys.
const (
	Cascade = "CASCADE"
	SetNull = "SET NULL"
)

type Field struct {
	Column     string
	Type       Type
	Nullable   bool
	Unique     bool
	Immutable  bool   // never written by a partial update
	References string // "table.column" for foreign keys
	OnDelete   string
}

func (f Field) IsForeignKey() bool { return f.References != "" }

// Parse converts a raw string (query param, CLI flag) into a value comparable with the column.
func (f Field) Parse(raw string) (any, error) {
	if f.Nullable && strings.EqualFold(raw, "null") {
		return nil, nil
	}
	switch f.Type {
	case String, Text:
		return raw, nil
	case Int:
		return strconv.ParseInt(raw, 10, 64)
	case Float:
		return strconv.ParseFloat(raw, 64)
	case Bool:
		return strconv.ParseBool(raw)
	case Time:
		return time.Parse(time.RFC3339, raw)
	case UUID:
		return uuid.Parse(raw)
	}
	return nil, fmt.Errorf("column %s of type %s is not filterable", f.Column, f.Type)
}

type Descriptor struct {
	entity string
	table  string
	fields []Field
	index  map[string]int
}

// New builds a descriptor. Duplicate columns are a programming error and panic.
func New(entity, table string, groups ...[]Field) *Descriptor {
	d := &Descriptor{entity: entity, table: table, index: map[string]int{}}
	for _, g := range groups {
		for _, f := range g {
			if _, dup := d.index[f.Column]; dup {
				panic(fmt.Sprintf("schema: duplicate column %q on %s", f.Column, entity))
			}
			d.index[f.Column] = len(d.fields)
			d.fields = append(d.fields, f)
		}
	}
	return d
}

func (d *Descriptor) Entity() string { return d.entity }
func (d *Descriptor) Table() string  { return d.table }

func (d *Descriptor) Has(column string) bool {
	_, ok := d.index[column]
	return ok
}

func (d *Descriptor) Field(column string) (Field, bool) {
	i, ok := d.index[column]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}

// Fields returns a copy in declaration order.
func (d *Descriptor) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

func (d *Descriptor) Columns() []string {
	out := make([]string, len(d.fields))
	for i, f := range d.fields {
		out[i] = f.Column
	}
	return out
}

func (d *Descriptor) ForeignKeys() []Field {
	var out []Field
	for _, f := range d.fields {
		if f.IsForeignKey() {
			out = append(out, f)
		}
	}
	return out
}

func (d *Descriptor) Unique() []Field {
	var out []Field
	for _, f := range d.fields {
		if f.Unique {
			out = append(out, f)
		}
	}
	return out
}
