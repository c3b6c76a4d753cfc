// Package editor holds the mutable definition of a table while it is being
// edited and turns it into reconciler input on commit.
package editor

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"tabledesk/internal/reconciler"
)

var (
	ErrColumnNotFound     = errors.New("column not found")
	ErrDuplicateColumn    = errors.New("column already exists")
	ErrInheritedColumn    = errors.New("inherited columns can only be changed on their parent table")
	ErrPrimaryKeyExists   = errors.New("table already has a primary key")
	ErrConstraintNotFound = errors.New("constraint not found")
	ErrAlreadyInherited   = errors.New("table already inherits from this parent")
	ErrNotInherited       = errors.New("table does not inherit from this parent")
	ErrRequired           = errors.New("is required")
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// State is the EditState of one session. It is not safe for concurrent use;
// callers serialize access per session.
type State struct {
	previous *reconciler.Snapshot

	schema     string
	name       string
	owner      string
	comment    string
	tablespace string
	hasOids    bool

	columns     []reconciler.ColumnDefinition
	constraints []reconciler.ConstraintDefinition
	inherits    []reconciler.TableRef
	grants      []reconciler.Grant
}

// NewCreateState starts an empty definition for a table that does not exist yet.
func NewCreateState(schema, name string) *State {
	if schema == "" {
		schema = reconciler.DefaultSchema
	}
	return &State{schema: schema, name: name}
}

// NewEditState starts from a copy of the snapshot. The snapshot itself is
// never modified.
func NewEditState(s *reconciler.Snapshot) *State {
	in := reconciler.InputFromSnapshot(s)
	return &State{
		previous:    s,
		schema:      in.Schema,
		name:        in.Name,
		owner:       in.Owner,
		comment:     in.Comment,
		tablespace:  in.Tablespace,
		hasOids:     in.HasOids,
		columns:     in.Columns,
		constraints: in.Constraints,
		inherits:    in.Inherits,
	}
}

func (s *State) Mode() Mode {
	if s.previous == nil {
		return ModeCreate
	}
	return ModeEdit
}

// Previous returns the snapshot the session was opened from, nil in create mode.
func (s *State) Previous() *reconciler.Snapshot { return s.previous }

func (s *State) Schema() string { return s.schema }
func (s *State) Name() string   { return s.name }

func (s *State) SetName(name string)             { s.name = strings.TrimSpace(name) }
func (s *State) SetOwner(owner string)           { s.owner = owner }
func (s *State) SetComment(comment string)       { s.comment = comment }
func (s *State) SetTablespace(tablespace string) { s.tablespace = tablespace }
func (s *State) SetGrants(grants []reconciler.Grant) {
	s.grants = slices.Clone(grants)
}

// SetHasOids only takes effect when creating a table or when dropping oids;
// oids are never added back to an existing table.
func (s *State) SetHasOids(hasOids bool) {
	if hasOids && s.previous != nil && !s.previous.HasOids {
		return
	}
	s.hasOids = hasOids
}

func (s *State) Columns() []reconciler.ColumnDefinition {
	return slices.Clone(s.columns)
}

func (s *State) Constraints() []reconciler.ConstraintDefinition {
	return slices.Clone(s.constraints)
}

func (s *State) Inherits() []reconciler.TableRef {
	return slices.Clone(s.inherits)
}

func (s *State) findColumn(name string) int {
	return slices.IndexFunc(s.columns, func(c reconciler.ColumnDefinition) bool { return c.Name == name })
}

// AddColumn appends a new column declared on the table.
func (s *State) AddColumn(spec reconciler.ColumnSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("add column: name %w", ErrRequired)
	}
	if strings.TrimSpace(spec.DataType) == "" {
		return fmt.Errorf("add column %q: data type %w", spec.Name, ErrRequired)
	}
	if s.findColumn(spec.Name) >= 0 {
		return fmt.Errorf("add column %q: %w", spec.Name, ErrDuplicateColumn)
	}
	s.columns = append(s.columns, reconciler.ColumnDefinition{Name: spec.Name, Clause: spec.Clause()})
	return nil
}

// ChangeColumn replaces the definition of the named column. A column that
// existed when the session opened gets the ALTER actions leading from its
// loaded definition to spec; a new column is simply rewritten.
func (s *State) ChangeColumn(name string, spec reconciler.ColumnSpec) error {
	i := s.findColumn(name)
	if i < 0 {
		return fmt.Errorf("change column %q: %w", name, ErrColumnNotFound)
	}
	col := &s.columns[i]
	if col.Inherited() {
		return fmt.Errorf("change column %q: %w", name, ErrInheritedColumn)
	}
	if strings.TrimSpace(spec.Name) == "" {
		spec.Name = name
	}
	if strings.TrimSpace(spec.DataType) == "" {
		return fmt.Errorf("change column %q: data type %w", name, ErrRequired)
	}
	if spec.Name != name && s.findColumn(spec.Name) >= 0 {
		return fmt.Errorf("change column %q: %w", spec.Name, ErrDuplicateColumn)
	}

	col.Name = spec.Name
	col.Clause = spec.Clause()
	if col.Loaded != nil {
		col.Alter = alterActions(col.Loaded.ColumnSpec, spec)
		if col.Alter == "" {
			col.Clause = col.Loaded.Clause()
		}
	}
	return nil
}

func alterActions(from, to reconciler.ColumnSpec) string {
	var actions []string
	column := reconciler.QuoteIdent(to.Name)
	if from.Name != to.Name {
		actions = append(actions, "RENAME COLUMN "+reconciler.QuoteIdent(from.Name)+" TO "+column)
	}
	if from.DataType != to.DataType {
		actions = append(actions, "ALTER COLUMN "+column+" TYPE "+to.DataType)
	}
	if from.Default != to.Default {
		if to.Default == "" {
			actions = append(actions, "ALTER COLUMN "+column+" DROP DEFAULT")
		} else {
			actions = append(actions, "ALTER COLUMN "+column+" SET DEFAULT "+to.Default)
		}
	}
	if from.NotNull != to.NotNull {
		if to.NotNull {
			actions = append(actions, "ALTER COLUMN "+column+" SET NOT NULL")
		} else {
			actions = append(actions, "ALTER COLUMN "+column+" DROP NOT NULL")
		}
	}
	return strings.Join(actions, "\n")
}

// RemoveColumn removes a column declared on the table.
func (s *State) RemoveColumn(name string) error {
	i := s.findColumn(name)
	if i < 0 {
		return fmt.Errorf("remove column %q: %w", name, ErrColumnNotFound)
	}
	if s.columns[i].Inherited() {
		return fmt.Errorf("remove column %q: %w", name, ErrInheritedColumn)
	}
	s.columns = slices.Delete(s.columns, i, i+1)
	return nil
}

func (s *State) hasPrimaryKey() bool {
	return slices.ContainsFunc(s.constraints, func(c reconciler.ConstraintDefinition) bool {
		return c.Kind == reconciler.PrimaryKey
	})
}

// ConstraintKinds lists the kinds that can be added in the current state.
// Primary key is offered only while the table has none.
func (s *State) ConstraintKinds() []reconciler.ConstraintKind {
	kinds := []reconciler.ConstraintKind{reconciler.ForeignKey, reconciler.Unique, reconciler.Check}
	if !s.hasPrimaryKey() {
		kinds = append([]reconciler.ConstraintKind{reconciler.PrimaryKey}, kinds...)
	}
	return kinds
}

func (s *State) AddConstraint(c reconciler.ConstraintDefinition) error {
	if c.Kind == reconciler.PrimaryKey && s.hasPrimaryKey() {
		return ErrPrimaryKeyExists
	}
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("add %s constraint: definition %w", c.Kind, ErrRequired)
	}
	s.constraints = append(s.constraints, c)
	return nil
}

// RemoveConstraint removes the constraint at index i of Constraints().
func (s *State) RemoveConstraint(i int) error {
	if i < 0 || i >= len(s.constraints) {
		return fmt.Errorf("remove constraint %d: %w", i, ErrConstraintNotFound)
	}
	s.constraints = slices.Delete(s.constraints, i, i+1)
	return nil
}

// AddInheritance makes the table a child of parent and inserts the parent's
// columns as inherited columns.
func (s *State) AddInheritance(parent reconciler.TableRef, columns []reconciler.ColumnSpec) error {
	if parent.Schema == "" {
		parent.Schema = reconciler.DefaultSchema
	}
	if slices.Contains(s.inherits, parent) {
		return fmt.Errorf("inherit %s: %w", parent, ErrAlreadyInherited)
	}
	s.inherits = append(s.inherits, parent)
	for _, spec := range columns {
		s.columns = append(s.columns, reconciler.ColumnDefinition{
			Name:          spec.Name,
			Clause:        spec.Clause(),
			InheritedFrom: parent.String(),
		})
	}
	return nil
}

// RemoveInheritance drops parent and every column inherited from it.
func (s *State) RemoveInheritance(parent reconciler.TableRef) error {
	if parent.Schema == "" {
		parent.Schema = reconciler.DefaultSchema
	}
	i := slices.Index(s.inherits, parent)
	if i < 0 {
		return fmt.Errorf("no inherit %s: %w", parent, ErrNotInherited)
	}
	s.inherits = slices.Delete(s.inherits, i, i+1)
	origin := parent.String()
	s.columns = slices.DeleteFunc(s.columns, func(c reconciler.ColumnDefinition) bool {
		return c.InheritedFrom == origin
	})
	return nil
}

// Input captures the current state for the reconciler.
func (s *State) Input() reconciler.Input {
	return reconciler.Input{
		Previous:    s.previous,
		Schema:      s.schema,
		Name:        s.name,
		Owner:       s.owner,
		Comment:     s.comment,
		Tablespace:  s.tablespace,
		HasOids:     s.hasOids,
		Columns:     slices.Clone(s.columns),
		Constraints: slices.Clone(s.constraints),
		Inherits:    slices.Clone(s.inherits),
		Grants:      slices.Clone(s.grants),
	}
}

func (s *State) Plan() ([]reconciler.Operation, error) {
	return reconciler.Reconcile(s.Input())
}
