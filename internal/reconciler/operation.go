package reconciler

import (
	"strings"
)

// Kind tags an emitted operation.
type Kind string

const (
	KindRename         Kind = "rename"
	KindOwnerChange    Kind = "owner_change"
	KindAddColumn      Kind = "add_column"
	KindDropColumn     Kind = "drop_column"
	KindAlterColumn    Kind = "alter_column"
	KindAddConstraint  Kind = "add_constraint"
	KindDropConstraint Kind = "drop_constraint"
	KindInherit        Kind = "inherit"
	KindNoInherit      Kind = "no_inherit"
	KindWithoutOids    Kind = "without_oids"
	KindSetComment     Kind = "set_comment"
	KindGrant          Kind = "grant"
	KindCreateTable    Kind = "create_table"
)

// Operation is one DDL step. Table is the quoted table the statement applies
// to, Target the unquoted identifier it acts on and Clause the dialect
// fragment the reconciler does not interpret.
type Operation struct {
	Kind   Kind   `json:"kind"`
	Table  string `json:"table"`
	Target string `json:"target"`
	Clause string `json:"clause,omitempty"`
}

// Statements renders the operation as PostgreSQL statements.
func (op Operation) Statements() []string {
	alter := "ALTER TABLE " + op.Table
	switch op.Kind {
	case KindRename:
		return []string{alter + " RENAME TO " + QuoteIdent(op.Target) + ";"}
	case KindOwnerChange:
		return []string{alter + " OWNER TO " + QuoteIdent(op.Target) + ";"}
	case KindAddColumn:
		return []string{alter + " ADD COLUMN " + QuoteIdent(op.Target) + " " + op.Clause + ";"}
	case KindDropColumn:
		return []string{alter + " DROP COLUMN " + QuoteIdent(op.Target) + ";"}
	case KindAlterColumn:
		var stmts []string
		for _, action := range strings.Split(op.Clause, "\n") {
			if action = strings.TrimSpace(action); action != "" {
				stmts = append(stmts, alter+" "+action+";")
			}
		}
		return stmts
	case KindAddConstraint:
		if op.Target == "" {
			return []string{alter + " ADD " + op.Clause + ";"}
		}
		return []string{alter + " ADD CONSTRAINT " + QuoteIdent(op.Target) + " " + op.Clause + ";"}
	case KindDropConstraint:
		return []string{alter + " DROP CONSTRAINT IF EXISTS " + QuoteIdent(op.Target) + ";"}
	case KindInherit:
		return []string{alter + " INHERIT " + ParseTableRef(op.Target).Quoted() + ";"}
	case KindNoInherit:
		return []string{alter + " NO INHERIT " + ParseTableRef(op.Target).Quoted() + ";"}
	case KindWithoutOids:
		return []string{alter + " SET WITHOUT OIDS;"}
	case KindSetComment:
		comment := "NULL"
		if op.Clause != "" {
			comment = QuoteLiteral(op.Clause)
		}
		return []string{"COMMENT ON TABLE " + op.Table + " IS " + comment + ";"}
	case KindGrant:
		return []string{"GRANT " + op.Clause + " ON TABLE " + op.Table + " TO " + quoteGrantee(op.Target) + ";"}
	case KindCreateTable:
		return []string{"CREATE TABLE " + op.Table + op.Clause + ";"}
	}
	return nil
}

// Script joins the statements of ops, one per line.
func Script(ops []Operation) string {
	var b strings.Builder
	for _, op := range ops {
		for _, stmt := range op.Statements() {
			b.WriteString(stmt)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func quoteGrantee(grantee string) string {
	if strings.EqualFold(grantee, "public") {
		return "PUBLIC"
	}
	return QuoteIdent(grantee)
}
