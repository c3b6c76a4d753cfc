package reconciler

import (
	"fmt"
	"strings"
)

var grantablePrivileges = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"TRUNCATE": true, "REFERENCES": true, "TRIGGER": true,
	"ALL": true, "ALL PRIVILEGES": true,
}

// Validate checks that the input describes a consistent edit state.
func Validate(in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "table name is required")
	}

	parents := make(map[string]bool, len(in.Inherits))
	for i, p := range in.Inherits {
		if p.Name == "" {
			return invalid(fmt.Sprintf("inherits[%d]", i), "parent table name is required")
		}
		parents[p.String()] = true
	}

	available := make(map[string]bool, len(in.Columns))
	renamedFrom := make(map[string]bool)
	own := make(map[string]bool, len(in.Columns))
	present := make(map[string]bool, len(in.Columns))
	for i, col := range in.Columns {
		field := fmt.Sprintf("columns[%d]", i)
		if col.Name == "" {
			return invalid(field, "column name is required")
		}
		if col.Inherited() {
			if !parents[col.InheritedFrom] {
				return invalid(field, "column %q is inherited from %s, which is not a parent table", col.Name, col.InheritedFrom)
			}
		} else {
			if own[col.Name] {
				return invalid(field, "duplicate column %q", col.Name)
			}
			own[col.Name] = true
			if strings.TrimSpace(col.Clause) == "" {
				return invalid(field, "column %q has no type", col.Name)
			}
		}
		if col.Alter != "" && in.Previous == nil {
			return invalid(field, "column %q carries alter actions but the table does not exist yet", col.Name)
		}
		if col.Alter != "" && col.Loaded == nil {
			return invalid(field, "column %q carries alter actions but no loaded definition", col.Name)
		}
		if col.Loaded != nil && col.Loaded.Name != col.Name {
			renamedFrom[col.Loaded.Name] = true
		}
		available[col.Name] = true
		present[col.Name+"\x00"+col.InheritedFrom] = true
	}

	// Constraints kept from the catalog still name renamed columns by their
	// old names; the server follows the rename itself.
	loadedConstraints := make(map[string]bool)
	if in.Previous != nil {
		for _, c := range in.Previous.Constraints {
			loadedConstraints[constraintKey(c)] = true
		}
	}

	primaryKeys := 0
	for i, c := range in.Constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		switch c.Kind {
		case PrimaryKey:
			primaryKeys++
			if primaryKeys > 1 {
				return invalid(field, "a table can have only one primary key")
			}
		case ForeignKey, Unique, Check:
		default:
			return invalid(field, "unknown constraint kind %q", c.Kind)
		}
		if strings.TrimSpace(c.Body) == "" {
			return invalid(field, "%s constraint has no definition", c.Kind)
		}
		if c.Kind == Check {
			continue
		}
		kept := loadedConstraints[constraintKey(c)]
		for _, ref := range referencedColumns(c.Body) {
			if !available[ref] && !(kept && renamedFrom[ref]) {
				return invalid(field, "%s constraint references unknown column %q", c.Kind, ref)
			}
		}
	}

	if prev := in.Previous; prev != nil {
		for i, c := range prev.Constraints {
			if c.Name == "" {
				return invalid(fmt.Sprintf("previous.constraints[%d]", i), "loaded constraint has no name")
			}
		}
		for _, col := range prev.Columns {
			if col.Inherited() && parents[col.InheritedFrom] && !present[col.Name+"\x00"+col.InheritedFrom] {
				return invalid("columns", "inherited column %q was removed while %s is still a parent", col.Name, col.InheritedFrom)
			}
		}
	}

	for i, g := range in.Grants {
		field := fmt.Sprintf("grants[%d]", i)
		if strings.TrimSpace(g.Grantee) == "" {
			return invalid(field, "grantee is required")
		}
		if len(g.Privileges) == 0 {
			return invalid(field, "no privileges to grant to %s", g.Grantee)
		}
		for _, p := range g.Privileges {
			if !grantablePrivileges[strings.ToUpper(strings.TrimSpace(p))] {
				return invalid(field, "privilege %q cannot be granted on a table", p)
			}
		}
	}
	return nil
}

// referencedColumns returns the identifiers of the first parenthesized list
// in a constraint body, which is the constrained column list for primary
// key, unique and foreign key constraints.
func referencedColumns(body string) []string {
	start := strings.IndexByte(body, '(')
	if start < 0 {
		return nil
	}
	var (
		refs    []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if ref := unquoteReference(cur.String()); ref != "" {
			refs = append(refs, ref)
		}
		cur.Reset()
	}
	for i := start + 1; i < len(body); i++ {
		ch := body[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
			cur.WriteByte(ch)
		case inQuote:
			cur.WriteByte(ch)
		case ch == ',':
			flush()
		case ch == ')':
			flush()
			return refs
		default:
			cur.WriteByte(ch)
		}
	}
	return nil
}
