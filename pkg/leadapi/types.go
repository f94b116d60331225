package leadapi

import "strings"

// CountRequest is the body for POST /leads/count.
type CountRequest struct {
	Token string `json:"token"`
}

// CountResponse is the response from POST /leads/count.
type CountResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Count   int    `json:"count"`
}

// BuildRequest is the body for POST /leads/build.
type BuildRequest struct {
	Token string `json:"token"`
	Zip   string `json:"zip"`
}

// BuildResponse is the response from POST /leads/build. Expected is the
// number of records the build will produce once the server finishes.
type BuildResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Expected int    `json:"expected"`
}

// SearchRequest is the body for POST /leads/search.
type SearchRequest struct {
	Token  string `json:"token"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// SearchResponse is the response from POST /leads/search: one page of
// property payloads at the requested offset.
type SearchResponse struct {
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
	Leads   []Property `json:"leads"`
}

// DeleteRequest is the body for POST /leads/delete. Count must equal the
// account's current record total.
type DeleteRequest struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// DeleteResponse is the response from POST /leads/delete.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Property is one raw property payload from the search endpoint.
type Property struct {
	Address  string    `json:"address"`
	Contacts []Contact `json:"contacts"`
}

// Contact is one raw contact attached to a property. The upstream schema is
// loose: owner flags and role hints appear under several aliases, and phones
// and emails occupy up to three fixed slots each.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`

	IsOwner     *bool  `json:"isOwner,omitempty"`
	Owner       *bool  `json:"owner,omitempty"`
	IsHomeowner *bool  `json:"isHomeowner,omitempty"`
	Role        string `json:"role,omitempty"`
	ContactType string `json:"contactType,omitempty"`
	Relation    string `json:"relation,omitempty"`

	Phone1     string `json:"phone1,omitempty"`
	Phone1Type string `json:"phone1Type,omitempty"`
	Phone2     string `json:"phone2,omitempty"`
	Phone2Type string `json:"phone2Type,omitempty"`
	Phone3     string `json:"phone3,omitempty"`
	Phone3Type string `json:"phone3Type,omitempty"`

	Email1 string `json:"email1,omitempty"`
	Email2 string `json:"email2,omitempty"`
	Email3 string `json:"email3,omitempty"`
}

// OwnerFlag collapses the aliased boolean markers into one value.
func (c Contact) OwnerFlag() bool {
	for _, p := range []*bool{c.IsOwner, c.Owner, c.IsHomeowner} {
		if p != nil && *p {
			return true
		}
	}
	return false
}

// RoleHint collapses the aliased role/type/relationship strings into one
// lowercased hint for the homeowner heuristic.
func (c Contact) RoleHint() string {
	return strings.ToLower(strings.Join([]string{c.Role, c.ContactType, c.Relation}, " "))
}

// PhoneSlots returns the raw phone slots in declaration order.
func (c Contact) PhoneSlots() [3][2]string {
	return [3][2]string{
		{c.Phone1, c.Phone1Type},
		{c.Phone2, c.Phone2Type},
		{c.Phone3, c.Phone3Type},
	}
}

// EmailSlots returns the non-empty email slots in declaration order.
func (c Contact) EmailSlots() []string {
	var out []string
	for _, e := range []string{c.Email1, c.Email2, c.Email3} {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
