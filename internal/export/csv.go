package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipleads/internal/model"
)

var fixedHeader = []string{"First Name", "Last Name", "Property Address", "Street Address", "Mobile"}

// EncodeCSV serializes rows into a rectangular CSV document. The dynamic
// phone and email column widths are computed over the given rows, so dedup
// must already have happened. The header is emitted even for zero rows.
func EncodeCSV(rows []model.HomeownerRow) ([]byte, error) {
	maxPhones, maxEmails := 0, 0
	for _, row := range rows {
		if len(row.Phones) > maxPhones {
			maxPhones = len(row.Phones)
		}
		if len(row.Emails) > maxEmails {
			maxEmails = len(row.Emails)
		}
	}

	header := append([]string{}, fixedHeader...)
	for i := 1; i <= maxPhones; i++ {
		header = append(header, fmt.Sprintf("Phone %d", i), fmt.Sprintf("Phone %d Type", i))
	}
	for i := 1; i <= maxEmails; i++ {
		header = append(header, fmt.Sprintf("Email %d", i))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, eris.Wrap(err, "export: write csv header")
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i := range record {
			record[i] = ""
		}
		record[0] = row.FirstName
		record[1] = row.LastName
		record[2] = row.PropertyAddress
		record[3] = row.StreetOnlyAddress
		record[4] = row.Mobile
		for i, phone := range row.Phones {
			record[5+2*i] = phone.Number
			record[5+2*i+1] = phone.Type
		}
		for i, email := range row.Emails {
			record[5+2*maxPhones+i] = email
		}
		if err := w.Write(record); err != nil {
			return nil, eris.Wrap(err, "export: write csv row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "export: flush csv")
	}
	return buf.Bytes(), nil
}
