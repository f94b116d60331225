package model

// ExportRequest is the inbound payload that starts an export run.
// Tags and ImportToHighLevel are accepted for wire compatibility with the
// form frontend but are not consumed by the pipeline.
type ExportRequest struct {
	Token             string   `json:"token" validate:"required"`
	Zips              []string `json:"zips" validate:"required,min=1"`
	Tags              []string `json:"tags,omitempty"`
	ImportToHighLevel bool     `json:"importToHighLevel,omitempty"`
}

// Phone is one normalized phone number with its upstream type tag.
type Phone struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

// HomeownerRow is one exported record: the selected homeowner contact for a
// property. A row exists only if the contact carries at least one
// mobile-tagged phone.
type HomeownerRow struct {
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	PropertyAddress   string   `json:"property_address"`
	StreetOnlyAddress string   `json:"street_only_address"`
	Mobile            string   `json:"mobile"`
	Phones            []Phone  `json:"phones"`
	Emails            []string `json:"emails"`
}
