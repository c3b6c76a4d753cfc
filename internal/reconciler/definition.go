// Package reconciler turns the definitions of a table captured when an edit
// session opened into the DDL operations that produce the edited definitions.
package reconciler

import (
	"fmt"
	"strings"
)

// DefaultSchema is used when a table is addressed without a namespace.
const DefaultSchema = "public"

// ConstraintKind is the SQL keyword introducing a table constraint.
type ConstraintKind string

const (
	PrimaryKey ConstraintKind = "PRIMARY KEY"
	ForeignKey ConstraintKind = "FOREIGN KEY"
	Unique     ConstraintKind = "UNIQUE"
	Check      ConstraintKind = "CHECK"
)

// ParseConstraintKind accepts the SQL keyword or the short forms used by the
// API ("primary_key", "pk", "fk", ...) and the pg_constraint.contype letters.
func ParseConstraintKind(s string) (ConstraintKind, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "PRIMARY KEY", "PRIMARY", "PK", "P":
		return PrimaryKey, nil
	case "FOREIGN KEY", "FOREIGN", "FK", "F":
		return ForeignKey, nil
	case "UNIQUE", "U":
		return Unique, nil
	case "CHECK", "C":
		return Check, nil
	}
	return "", fmt.Errorf("unknown constraint kind %q", s)
}

// UnmarshalText lets request bodies and plan files use any accepted spelling.
func (k *ConstraintKind) UnmarshalText(text []byte) error {
	kind, err := ParseConstraintKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// TableRef names a table inside a namespace.
type TableRef struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// ParseTableRef splits "schema.table"; a bare name lands in DefaultSchema.
func ParseTableRef(s string) TableRef {
	schema, name, ok := strings.Cut(s, ".")
	if !ok {
		return TableRef{Schema: DefaultSchema, Name: s}
	}
	return TableRef{Schema: schema, Name: name}
}

// String is the unquoted "schema.name" form used as the origin marker.
func (t TableRef) String() string {
	schema := t.Schema
	if schema == "" {
		schema = DefaultSchema
	}
	return schema + "." + t.Name
}

// Quoted renders the reference for use in a statement.
func (t TableRef) Quoted() string {
	return QuoteQualified(t.Schema, t.Name)
}

// ColumnSpec is what the column sub-editor collects for one column.
type ColumnSpec struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	NotNull  bool   `json:"not_null"`
	Default  string `json:"default,omitempty"`
}

// Clause renders the type and column constraints the way the catalog shows them.
func (s ColumnSpec) Clause() string {
	clause := s.DataType
	if s.NotNull {
		clause += " NOT NULL"
	}
	if s.Default != "" {
		clause += " DEFAULT " + s.Default
	}
	return clause
}

// LoadedColumn describes a column as it was read from the catalog.
type LoadedColumn struct {
	ColumnSpec
	Number         int `json:"number"`
	InheritedCount int `json:"inherited_count"`
}

// ColumnDefinition is one entry of the column list of a table.
type ColumnDefinition struct {
	Name   string `json:"name"`
	Clause string `json:"clause"`
	// InheritedFrom is the origin marker: the "schema.name" of the parent
	// table the column comes from, empty for columns declared on the table.
	InheritedFrom string `json:"inherited_from,omitempty"`
	// Alter holds the ALTER TABLE actions, one per line, materialized by the
	// column sub-editor. Empty when the column was not changed.
	Alter string `json:"alter,omitempty"`
	// Loaded is set for columns that existed when the session opened.
	Loaded *LoadedColumn `json:"loaded,omitempty"`
}

// Inherited reports whether the column comes from a parent table.
func (c ColumnDefinition) Inherited() bool {
	return c.InheritedFrom != ""
}

// ConstraintDefinition is one table constraint. Body is everything after the
// kind keyword, e.g. "(id)" or "(owner_id) REFERENCES users(id)".
type ConstraintDefinition struct {
	Name string         `json:"name"`
	Kind ConstraintKind `json:"kind"`
	Body string         `json:"body"`
}

// Clause is the constraint without its name.
func (c ConstraintDefinition) Clause() string {
	return string(c.Kind) + " " + c.Body
}

// Grant is an opaque permission operation appended after the table DDL.
type Grant struct {
	Grantee    string   `json:"grantee"`
	Privileges []string `json:"privileges"`
}

// Snapshot is the state of a table when its edit session opened. It is not
// modified after capture.
type Snapshot struct {
	Schema      string                 `json:"schema"`
	Name        string                 `json:"name"`
	OID         uint32                 `json:"oid,omitempty"`
	Owner       string                 `json:"owner"`
	Tablespace  string                 `json:"tablespace,omitempty"`
	Comment     string                 `json:"comment,omitempty"`
	HasOids     bool                   `json:"has_oids"`
	Columns     []ColumnDefinition     `json:"columns"`
	Constraints []ConstraintDefinition `json:"constraints"`
	Inherits    []TableRef             `json:"inherits,omitempty"`
}

// HasPrimaryKey reports whether a primary key is among the constraints.
func (s *Snapshot) HasPrimaryKey() bool {
	return hasPrimaryKey(s.Constraints)
}

// Input is the current state handed to Reconcile. Previous is nil when a
// new table is being created.
type Input struct {
	Previous    *Snapshot              `json:"previous,omitempty"`
	Schema      string                 `json:"schema"`
	Name        string                 `json:"name"`
	Owner       string                 `json:"owner,omitempty"`
	Comment     string                 `json:"comment,omitempty"`
	Tablespace  string                 `json:"tablespace,omitempty"`
	HasOids     bool                   `json:"has_oids"`
	Columns     []ColumnDefinition     `json:"columns"`
	Constraints []ConstraintDefinition `json:"constraints"`
	Inherits    []TableRef             `json:"inherits,omitempty"`
	Grants      []Grant                `json:"grants,omitempty"`
}

// InputFromSnapshot returns an Input describing the snapshot unchanged.
func InputFromSnapshot(s *Snapshot) Input {
	return Input{
		Previous:    s,
		Schema:      s.Schema,
		Name:        s.Name,
		Owner:       s.Owner,
		Comment:     s.Comment,
		Tablespace:  s.Tablespace,
		HasOids:     s.HasOids,
		Columns:     append([]ColumnDefinition(nil), s.Columns...),
		Constraints: append([]ConstraintDefinition(nil), s.Constraints...),
		Inherits:    append([]TableRef(nil), s.Inherits...),
	}
}

func (in Input) schema() string {
	if in.Previous != nil && in.Previous.Schema != "" {
		return in.Previous.Schema
	}
	if in.Schema == "" {
		return DefaultSchema
	}
	return in.Schema
}

func hasPrimaryKey(constraints []ConstraintDefinition) bool {
	for _, c := range constraints {
		if c.Kind == PrimaryKey {
			return true
		}
	}
	return false
}
