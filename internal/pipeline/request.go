package pipeline

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zipleads/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// ValidateRequest checks an inbound export request before any stream opens.
// Region codes that are not exactly five digits are dropped without being
// reported; a request whose token is empty or whose region list has no
// survivors is rejected.
func ValidateRequest(req model.ExportRequest) (model.ExportRequest, error) {
	if err := validate.Struct(req); err != nil {
		return model.ExportRequest{}, eris.Wrap(err, "pipeline: invalid export request")
	}

	zips := make([]string, 0, len(req.Zips))
	for _, z := range req.Zips {
		if zipPattern.MatchString(z) {
			zips = append(zips, z)
		}
	}
	if len(zips) == 0 {
		return model.ExportRequest{}, eris.New("pipeline: no valid 5-digit zip codes in request")
	}

	req.Zips = zips
	return req, nil
}
