package models

// TableSummary is one row of a table listing.
type TableSummary struct {
	OID     uint32 `json:"oid"`
	Schema  string `json:"schema"`
	Name    string `json:"name"`
	Owner   string `json:"owner"`
	Comment string `json:"comment,omitempty"`
}

// Property is one name/value line of an object's property list.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
