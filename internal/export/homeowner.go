// Package export turns raw property payloads into deduplicated homeowner
// rows and serializes them as CSV.
package export

import (
	"strings"

	"github.com/sells-group/zipleads/internal/model"
	"github.com/sells-group/zipleads/pkg/leadapi"
)

// mobileTypeTag is the upstream phone-type marker for mobile-capable numbers.
const mobileTypeTag = "W"

// selectionRule matches one owner signal on a normalized contact. Rules are
// evaluated in priority order across the full contact list; the first contact
// matching the highest-priority rule wins.
type selectionRule struct {
	name  string
	match func(leadapi.Contact) bool
}

var selectionRules = []selectionRule{
	{name: "owner_flag", match: func(c leadapi.Contact) bool {
		return c.OwnerFlag()
	}},
	{name: "role_hint", match: func(c leadapi.Contact) bool {
		// "owner" is a substring of "homeowner", so one check covers both.
		return strings.Contains(c.RoleHint(), "owner")
	}},
}

// SelectContact picks the homeowner contact for a property. Falls back to the
// first listed contact when no rule matches. Among multiple matches for a
// rule, list order decides.
func SelectContact(contacts []leadapi.Contact) (leadapi.Contact, bool) {
	if len(contacts) == 0 {
		return leadapi.Contact{}, false
	}
	for _, rule := range selectionRules {
		for _, c := range contacts {
			if rule.match(c) {
				return c, true
			}
		}
	}
	return contacts[0], true
}

// ParseProperty converts one raw property into a homeowner row. Returns false
// when the property has no contacts or the selected contact carries no
// mobile-tagged phone.
func ParseProperty(p leadapi.Property) (model.HomeownerRow, bool) {
	contact, ok := SelectContact(p.Contacts)
	if !ok {
		return model.HomeownerRow{}, false
	}

	phones, mobile := collectPhones(contact)
	if mobile == "" {
		return model.HomeownerRow{}, false
	}

	first, last := resolveName(contact)

	return model.HomeownerRow{
		FirstName:         recaseFirst(first),
		LastName:          last,
		PropertyAddress:   p.Address,
		StreetOnlyAddress: streetOnly(p.Address),
		Mobile:            mobile,
		Phones:            phones,
		Emails:            contact.EmailSlots(),
	}, true
}

// ParsePage converts one raw page of properties into homeowner rows,
// preserving property order.
func ParsePage(properties []leadapi.Property) []model.HomeownerRow {
	var rows []model.HomeownerRow
	for _, p := range properties {
		if row, ok := ParseProperty(p); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// collectPhones normalizes the contact's phone slots, dropping empty and
// duplicate numbers, and returns the first mobile-tagged number.
func collectPhones(c leadapi.Contact) ([]model.Phone, string) {
	var phones []model.Phone
	var mobile string
	seen := make(map[string]bool, 3)

	for _, slot := range c.PhoneSlots() {
		number := NormalizePhone(slot[0])
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true
		phones = append(phones, model.Phone{Number: number, Type: slot[1]})
		if mobile == "" && strings.EqualFold(slot[1], mobileTypeTag) {
			mobile = number
		}
	}
	return phones, mobile
}

// NormalizePhone strips every non-digit character, preserving a leading "+".
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	if strings.HasPrefix(raw, "+") {
		return "+" + b.String()
	}
	return b.String()
}

// resolveName prefers the explicit given/surname fields. When both are empty
// it splits the full-name field on whitespace: one token is a first name
// only, otherwise first and last token with middle tokens dropped.
func resolveName(c leadapi.Contact) (first, last string) {
	if c.FirstName != "" || c.LastName != "" {
		return c.FirstName, c.LastName
	}
	parts := strings.Fields(c.FullName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[len(parts)-1]
	}
}

// recaseFirst uppercases the first character and lowercases the remainder.
func recaseFirst(name string) string {
	if name == "" {
		return ""
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

// streetOnly returns the trimmed portion of the address before the first
// comma.
func streetOnly(address string) string {
	street, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(street)
}
