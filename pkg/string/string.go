// Package string holds small string helpers shared across packages.
package string

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a Go struct field name to its wire form, so
// validation messages name fields the way the JSON body spells them
// (EmployeeID -> employee_id).
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
