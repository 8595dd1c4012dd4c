package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
)

// ContributionRow is one line of a contribution report: a subject's new
// cumulative donation total.
type ContributionRow struct {
	Subject     string
	Category    model.Category
	NewTotal    float64
	Recipient   string
	PoolName    string
	CharityName string
}

// Column order of contribution report spreadsheets. The first row is a
// header and is skipped.
const (
	colSubject = iota
	colCategory
	colTotal
	colRecipient
	colPoolName
	colCharity
	minReportColumns = colRecipient + 1
)

// ReadReport parses a contribution report spreadsheet. Malformed rows are
// logged and skipped so one bad line never blocks the rest of the report.
func ReadReport(path string) ([]ContributionRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	var rows []ContributionRow
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}

		parsed, err := parseRow(cells)
		if err != nil {
			zap.L().Warn("skipping malformed report row",
				zap.String("file", path),
				zap.Int("row", i+1),
				zap.Error(err))
			continue
		}
		rows = append(rows, *parsed)
	}
	return rows, nil
}

func parseRow(cells []string) (*ContributionRow, error) {
	if len(cells) < minReportColumns {
		return nil, eris.Errorf("expected at least %d columns, got %d", minReportColumns, len(cells))
	}
	if cells[colSubject] == "" {
		return nil, eris.New("empty subject")
	}

	category := model.Category(strings.ToLower(cells[colCategory]))
	if !category.Valid() {
		return nil, eris.Errorf("unknown category %q", cells[colCategory])
	}

	total, err := strconv.ParseFloat(cells[colTotal], 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse total %q", cells[colTotal])
	}
	if total < 0 {
		return nil, eris.Errorf("negative total %s", cells[colTotal])
	}

	r := &ContributionRow{
		Subject:   cells[colSubject],
		Category:  category,
		NewTotal:  total,
		Recipient: cells[colRecipient],
	}
	if len(cells) > colPoolName {
		r.PoolName = cells[colPoolName]
	}
	if len(cells) > colCharity {
		r.CharityName = cells[colCharity]
	}
	return r, nil
}
