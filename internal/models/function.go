package models

import (
	"strconv"
	"strings"

	"tabledesk/internal/reconciler"
)

// Function mirrors a pg_proc entry.
type Function struct {
	OID             uint32   `json:"oid"`
	Schema          string   `json:"schema"`
	Name            string   `json:"name"`
	Owner           string   `json:"owner"`
	ArgCount        int      `json:"arg_count"`
	ArgTypes        []string `json:"arg_types"`
	ReturnType      string   `json:"return_type"`
	Language        string   `json:"language"`
	ReturnsSet      bool     `json:"returns_set"`
	Source          string   `json:"source"`
	Volatility      string   `json:"volatility"`
	SecurityDefiner bool     `json:"security_definer"`
	Strict          bool     `json:"strict"`
	SystemObject    bool     `json:"system_object"`
	Comment         string   `json:"comment,omitempty"`
}

// VolatilityName maps pg_proc.provolatile to its keyword.
func VolatilityName(code string) string {
	switch code {
	case "i":
		return "IMMUTABLE"
	case "s":
		return "STABLE"
	case "v":
		return "VOLATILE"
	}
	return "unknown"
}

func (f *Function) IsTrigger() bool {
	return f.ReturnType == "trigger"
}

// FullName is the signature shown in listings, e.g. "add(integer, integer)".
func (f *Function) FullName() string {
	return f.Name + "(" + strings.Join(f.ArgTypes, ", ") + ")"
}

func (f *Function) Properties() []Property {
	return []Property{
		{"Name", f.Name},
		{"OID", strconv.FormatUint(uint64(f.OID), 10)},
		{"Owner", f.Owner},
		{"Argument Count", strconv.Itoa(f.ArgCount)},
		{"Arguments", strings.Join(f.ArgTypes, ", ")},
		{"Returns", f.ReturnType},
		{"Language", f.Language},
		{"Returns a Set?", yesNo(f.ReturnsSet)},
		{"Source", f.Source},
		{"Volatility", f.Volatility},
		{"Security Definer?", yesNo(f.SecurityDefiner)},
		{"Strict?", yesNo(f.Strict)},
		{"System Function?", yesNo(f.SystemObject)},
		{"Comment", f.Comment},
	}
}

// SQL reverse engineers the CREATE FUNCTION statement.
func (f *Function) SQL() string {
	var b strings.Builder
	b.WriteString("CREATE FUNCTION ")
	b.WriteString(reconciler.QuoteQualified(f.Schema, f.Name))
	b.WriteString("(" + strings.Join(f.ArgTypes, ", ") + ")\n    RETURNS ")
	if f.ReturnsSet {
		b.WriteString("SETOF ")
	}
	b.WriteString(f.ReturnType)
	b.WriteString(" AS ")
	b.WriteString(reconciler.QuoteLiteral("\n" + f.Source + "\n"))
	b.WriteString("\n    LANGUAGE " + reconciler.QuoteIdent(f.Language))
	if f.Volatility != "" && f.Volatility != "unknown" {
		b.WriteString(" " + f.Volatility)
	}
	if f.Strict {
		b.WriteString(" STRICT")
	}
	if f.SecurityDefiner {
		b.WriteString(" SECURITY DEFINER")
	}
	b.WriteString(";\n")
	if f.Comment != "" {
		b.WriteString("COMMENT ON FUNCTION " + reconciler.QuoteQualified(f.Schema, f.Name) +
			"(" + strings.Join(f.ArgTypes, ", ") + ") IS " + reconciler.QuoteLiteral(f.Comment) + ";\n")
	}
	return b.String()
}
