package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Column names expected in the weekly export. Unknown columns are carried
// through in the row map; missing columns read as empty strings.
const (
	ColOpportunityID       = "Opportunity id"
	ColCustomerName        = "Customer Company Name"
	ColStatus              = "Status"
	ColStage               = "Stage"
	ColPrimaryContactName  = "Primary Contact Name"
	ColDateCreated         = "Date Created"
	ColLastUpdatedDate     = "Last Updated Date"
	ColNextStep            = "Next Step"
	ColTargetCloseDate     = "Target Close Date"
	ColEstimatedRevenue    = "Estimated AWS Monthly Recurring Revenue"
	ColCreatedBy           = "Created By"
	ColAWSAccountID        = "AWS Account ID"
	ColAPNPrograms         = "APN Programs"
	ColPartnerProjectTitle = "Partner Project Title"
	ColAWSSalesRepName     = "AWS Sales Rep Name"
	ColClosedReason        = "Closed Reason"
)

// Row is one raw export row, keyed by column header.
type Row map[string]string

// ReadCSV reads an export into raw rows, preserving file order. The first
// record is the header. Short rows are padded by the csv package's
// FieldsPerRecord handling being disabled here; ragged exports happen when
// trailing cells are empty.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("export is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+2, err)
		}

		row := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
