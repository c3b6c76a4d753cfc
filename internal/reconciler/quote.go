package reconciler

import (
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

var plainIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// Reserved key words that must be quoted even when lower case.
var reservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true, "array": true,
	"as": true, "asc": true, "asymmetric": true, "both": true, "case": true, "cast": true,
	"check": true, "collate": true, "column": true, "constraint": true, "create": true,
	"current_catalog": true, "current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true, "deferrable": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "from": true, "grant": true,
	"group": true, "having": true, "in": true, "initially": true, "intersect": true,
	"into": true, "lateral": true, "leading": true, "limit": true, "localtime": true,
	"localtimestamp": true, "not": true, "null": true, "offset": true, "on": true,
	"only": true, "or": true, "order": true, "placing": true, "primary": true,
	"references": true, "returning": true, "select": true, "session_user": true,
	"some": true, "symmetric": true, "table": true, "then": true, "to": true,
	"trailing": true, "true": true, "union": true, "unique": true, "user": true,
	"using": true, "variadic": true, "when": true, "where": true, "window": true, "with": true,
}

// QuoteIdent quotes name only when PostgreSQL would otherwise fold or reject it.
func QuoteIdent(name string) string {
	if name == "" {
		return ""
	}
	if plainIdentifier.MatchString(name) && !reservedWords[name] {
		return name
	}
	return pgx.Identifier{name}.Sanitize()
}

// QuoteQualified renders schema.name, defaulting the schema.
func QuoteQualified(schema, name string) string {
	if schema == "" {
		schema = DefaultSchema
	}
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// QuoteLiteral renders s as a standard SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// identifierFromDefinition recovers the identifier a stored definition string
// starts with: the quoted segment when it begins with a double quote,
// otherwise the first space separated token.
func identifierFromDefinition(def string) string {
	if !strings.HasPrefix(def, `"`) {
		name, _, _ := strings.Cut(def, " ")
		return name
	}
	var b strings.Builder
	for i := 1; i < len(def); i++ {
		if def[i] != '"' {
			b.WriteByte(def[i])
			continue
		}
		if i+1 < len(def) && def[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		break
	}
	return b.String()
}

// unquoteReference resolves an identifier as written in a constraint body:
// quoted names keep their case, bare names fold to lower case.
func unquoteReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, `"`) {
		return identifierFromDefinition(ref)
	}
	return strings.ToLower(ref)
}

func columnKey(name, clause string) string {
	return QuoteIdent(name) + " " + clause
}

func constraintKey(c ConstraintDefinition) string {
	return QuoteIdent(c.Name) + " " + string(c.Kind) + " " + c.Body
}
