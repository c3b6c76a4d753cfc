package models

import (
	"strconv"
	"strings"
	"time"

	"tabledesk/internal/reconciler"
)

// User mirrors a login role.
type User struct {
	OID        uint32     `json:"oid"`
	Name       string     `json:"name"`
	Superuser  bool       `json:"superuser"`
	CreateDB   bool       `json:"create_db"`
	CreateRole bool       `json:"create_role"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	// Config holds the per-user settings as "name=value".
	Config   []string `json:"config,omitempty"`
	MemberOf []string `json:"member_of,omitempty"`
}

func (u *User) Properties() []Property {
	expires := ""
	if u.ValidUntil != nil {
		expires = u.ValidUntil.UTC().Format(time.RFC3339)
	}
	props := []Property{
		{"Name", u.Name},
		{"User ID", strconv.FormatUint(uint64(u.OID), 10)},
		{"Account expires", expires},
		{"Superuser?", yesNo(u.Superuser)},
		{"Create databases?", yesNo(u.CreateDB)},
		{"Create roles?", yesNo(u.CreateRole)},
		{"Member of", strings.Join(u.MemberOf, ", ")},
	}
	for _, item := range u.Config {
		name, value, _ := strings.Cut(item, "=")
		props = append(props, Property{name, value})
	}
	return props
}

// SQL reverse engineers the statements recreating the user.
func (u *User) SQL() string {
	name := reconciler.QuoteIdent(u.Name)

	var b strings.Builder
	b.WriteString("-- User: " + strconv.Quote(u.Name) + "\n\n")
	b.WriteString("-- DROP USER " + name + ";\n\n")
	b.WriteString("CREATE USER " + name + "\n ")
	if u.Superuser {
		b.WriteString(" SUPERUSER")
	} else {
		b.WriteString(" NOSUPERUSER")
	}
	if u.CreateDB {
		b.WriteString(" CREATEDB")
	} else {
		b.WriteString(" NOCREATEDB")
	}
	if u.CreateRole {
		b.WriteString(" CREATEROLE")
	} else {
		b.WriteString(" NOCREATEROLE")
	}
	if u.ValidUntil != nil {
		b.WriteString(" VALID UNTIL " + reconciler.QuoteLiteral(u.ValidUntil.UTC().Format("2006-01-02 15:04:05Z07:00")))
	}
	b.WriteString(";\n")

	for _, item := range u.Config {
		b.WriteString("ALTER USER " + name + " SET " + item + ";\n")
	}
	for _, group := range u.MemberOf {
		b.WriteString("GRANT " + reconciler.QuoteIdent(group) + " TO " + name + ";\n")
	}
	return b.String()
}
