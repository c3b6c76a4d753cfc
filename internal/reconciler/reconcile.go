package reconciler

import (
	"strings"
)

// Reconcile returns the operations that turn in.Previous into the state
// described by in, or the CREATE TABLE sequence when in.Previous is nil.
// Nothing is emitted when the input fails validation.
func Reconcile(in Input) ([]Operation, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	if in.Previous == nil {
		return reconcileCreate(in), nil
	}
	return reconcileEdit(in), nil
}

func reconcileEdit(in Input) []Operation {
	prev := in.Previous
	schema := in.schema()
	table := QuoteQualified(schema, in.Name)

	var ops []Operation
	if in.Name != prev.Name {
		ops = append(ops, Operation{Kind: KindRename, Table: QuoteQualified(schema, prev.Name), Target: in.Name})
	}
	if in.Owner != "" && in.Owner != prev.Owner {
		ops = append(ops, Operation{Kind: KindOwnerChange, Table: table, Target: in.Owner})
	}

	added, removed := diffParents(prev.Inherits, in.Inherits)
	for _, p := range removed {
		ops = append(ops, Operation{Kind: KindNoInherit, Table: table, Target: p.String()})
	}
	ops = append(ops, diffColumns(table, prev.Columns, in.Columns)...)
	ops = append(ops, parentColumns(table, in.Columns, added)...)
	for _, p := range added {
		ops = append(ops, Operation{Kind: KindInherit, Table: table, Target: p.String()})
	}
	ops = append(ops, diffConstraints(table, prev.Constraints, in.Constraints)...)

	// Oids can only be given up, and only once a primary key identifies rows.
	if prev.HasOids && !in.HasOids && hasPrimaryKey(in.Constraints) {
		ops = append(ops, Operation{Kind: KindWithoutOids, Table: table, Target: in.Name})
	}
	if in.Comment != prev.Comment {
		ops = append(ops, Operation{Kind: KindSetComment, Table: table, Target: in.Name, Clause: in.Comment})
	}
	return append(ops, grantOperations(table, in.Grants)...)
}

func reconcileCreate(in Input) []Operation {
	table := QuoteQualified(in.schema(), in.Name)

	var items []string
	for _, col := range in.Columns {
		if col.Inherited() {
			continue
		}
		items = append(items, columnKey(col.Name, col.Clause))
	}
	for _, c := range in.Constraints {
		if c.Name == "" {
			items = append(items, c.Clause())
			continue
		}
		items = append(items, "CONSTRAINT "+QuoteIdent(c.Name)+" "+c.Clause())
	}

	var b strings.Builder
	b.WriteString("\n(")
	for i, item := range items {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n   ")
		b.WriteString(item)
	}
	b.WriteString("\n)")
	if len(in.Inherits) > 0 {
		parents := make([]string, len(in.Inherits))
		for i, p := range in.Inherits {
			parents[i] = p.Quoted()
		}
		b.WriteString("\nINHERITS (" + strings.Join(parents, ", ") + ")")
	}
	if in.HasOids {
		b.WriteString("\nWITH OIDS")
	} else {
		b.WriteString("\nWITHOUT OIDS")
	}
	if in.Tablespace != "" {
		b.WriteString("\nTABLESPACE " + QuoteIdent(in.Tablespace))
	}

	ops := []Operation{{Kind: KindCreateTable, Table: table, Target: in.Name, Clause: b.String()}}
	if in.Owner != "" {
		ops = append(ops, Operation{Kind: KindOwnerChange, Table: table, Target: in.Owner})
	}
	if in.Comment != "" {
		ops = append(ops, Operation{Kind: KindSetComment, Table: table, Target: in.Name, Clause: in.Comment})
	}
	return append(ops, grantOperations(table, in.Grants)...)
}

// remaining is the working set of previous definition strings. Entries are
// consumed at most once and the unconsumed ones keep their original order.
type remaining struct {
	keys     []string
	consumed []bool
}

func newRemaining(keys []string) *remaining {
	return &remaining{keys: keys, consumed: make([]bool, len(keys))}
}

func (r *remaining) take(key string) bool {
	for i, k := range r.keys {
		if !r.consumed[i] && k == key {
			r.consumed[i] = true
			return true
		}
	}
	return false
}

// takeIdentifier consumes the first entry whose definition starts with name.
func (r *remaining) takeIdentifier(name string) bool {
	for i, k := range r.keys {
		if !r.consumed[i] && identifierFromDefinition(k) == name {
			r.consumed[i] = true
			return true
		}
	}
	return false
}

func (r *remaining) left() []string {
	var out []string
	for i, k := range r.keys {
		if !r.consumed[i] {
			out = append(out, k)
		}
	}
	return out
}

func diffColumns(table string, previous, current []ColumnDefinition) []Operation {
	keys := make([]string, len(previous))
	for i, col := range previous {
		keys[i] = columnKey(col.Name, col.Clause)
	}
	rem := newRemaining(keys)

	// Altered columns claim their loaded entry before anything else, so a
	// new column reusing an old name cannot drop a column that is being
	// renamed away. Such a new column is added once the renames are done.
	renamedAway := make(map[string]bool)
	for _, col := range current {
		if col.Alter != "" && col.Loaded != nil {
			rem.take(columnKey(col.Loaded.Name, col.Loaded.Clause()))
			if col.Loaded.Name != col.Name {
				renamedAway[col.Loaded.Name] = true
			}
		}
	}

	var ops, deferred []Operation
	for _, col := range current {
		if col.Alter != "" {
			target := col.Name
			if col.Loaded != nil {
				target = col.Loaded.Name
			}
			// A column renamed onto the name of a dropped one needs the name free.
			if target != col.Name && rem.takeIdentifier(col.Name) {
				ops = append(ops, Operation{Kind: KindDropColumn, Table: table, Target: col.Name})
			}
			ops = append(ops, Operation{Kind: KindAlterColumn, Table: table, Target: target, Clause: col.Alter})
			continue
		}
		if rem.take(columnKey(col.Name, col.Clause)) || col.Inherited() {
			continue
		}
		add := Operation{Kind: KindAddColumn, Table: table, Target: col.Name, Clause: col.Clause}
		if renamedAway[col.Name] {
			deferred = append(deferred, add)
			continue
		}
		if rem.takeIdentifier(col.Name) {
			ops = append(ops, Operation{Kind: KindDropColumn, Table: table, Target: col.Name})
		}
		ops = append(ops, add)
	}
	ops = append(ops, deferred...)
	for _, key := range rem.left() {
		ops = append(ops, Operation{Kind: KindDropColumn, Table: table, Target: identifierFromDefinition(key)})
	}
	return ops
}

// parentColumns adds the columns of newly inherited parents that the table
// does not have yet. INHERIT requires the child to carry every parent column.
func parentColumns(table string, current []ColumnDefinition, added []TableRef) []Operation {
	if len(added) == 0 {
		return nil
	}
	isNew := make(map[string]bool, len(added))
	for _, p := range added {
		isNew[p.String()] = true
	}
	have := make(map[string]bool, len(current))
	for _, col := range current {
		if !col.Inherited() || !isNew[col.InheritedFrom] {
			have[col.Name] = true
		}
	}

	var ops []Operation
	for _, col := range current {
		if !col.Inherited() || !isNew[col.InheritedFrom] || have[col.Name] {
			continue
		}
		have[col.Name] = true
		ops = append(ops, Operation{Kind: KindAddColumn, Table: table, Target: col.Name, Clause: col.Clause})
	}
	return ops
}

func diffConstraints(table string, previous, current []ConstraintDefinition) []Operation {
	keys := make([]string, len(previous))
	for i, c := range previous {
		keys[i] = constraintKey(c)
	}
	rem := newRemaining(keys)

	var adds []ConstraintDefinition
	for _, c := range current {
		if !rem.take(constraintKey(c)) {
			adds = append(adds, c)
		}
	}

	left := rem.left()
	dropped := make([]bool, len(left))
	drop := func(i int) Operation {
		dropped[i] = true
		return Operation{Kind: KindDropConstraint, Table: table, Target: identifierFromDefinition(left[i])}
	}

	var ops []Operation
	for _, c := range adds {
		// An outgoing constraint holding the same name, or the outgoing
		// primary key when a new one arrives, has to go first.
		for i, key := range left {
			if dropped[i] {
				continue
			}
			sameName := c.Name != "" && identifierFromDefinition(key) == c.Name
			samePK := c.Kind == PrimaryKey && isPrimaryKeyDefinition(key)
			if sameName || samePK {
				ops = append(ops, drop(i))
			}
		}
		ops = append(ops, Operation{Kind: KindAddConstraint, Table: table, Target: c.Name, Clause: c.Clause()})
	}
	for i := range left {
		if !dropped[i] {
			ops = append(ops, drop(i))
		}
	}
	return ops
}

func isPrimaryKeyDefinition(key string) bool {
	rest := strings.TrimPrefix(key, QuoteIdent(identifierFromDefinition(key))+" ")
	return strings.HasPrefix(rest, string(PrimaryKey)+" ")
}

func diffParents(previous, current []TableRef) (added, removed []TableRef) {
	before := make(map[string]bool, len(previous))
	for _, p := range previous {
		before[p.String()] = true
	}
	after := make(map[string]bool, len(current))
	for _, p := range current {
		after[p.String()] = true
		if !before[p.String()] {
			added = append(added, p)
		}
	}
	for _, p := range previous {
		if !after[p.String()] {
			removed = append(removed, p)
		}
	}
	return added, removed
}

func grantOperations(table string, grants []Grant) []Operation {
	ops := make([]Operation, 0, len(grants))
	for _, g := range grants {
		privileges := make([]string, len(g.Privileges))
		for i, p := range g.Privileges {
			privileges[i] = strings.ToUpper(strings.TrimSpace(p))
		}
		ops = append(ops, Operation{Kind: KindGrant, Table: table, Target: g.Grantee, Clause: strings.Join(privileges, ", ")})
	}
	return ops
}
