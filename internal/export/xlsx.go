// Package export writes prospecting results to files for handoff outside
// the CRM.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospecting-cli/internal/model"
)

// xlsxHeader is the column layout of the prospect sheet.
var xlsxHeader = []string{
	"Name", "Priority", "Score", "Address", "Phone", "Website",
	"Rating", "Reviews", "Recommended Package", "Estimated Value",
	"Pain Points", "Talking Points",
}

// WriteXLSX writes prospects to an XLSX workbook at path. Prospects are
// written in the order given; callers sort first.
func WriteXLSX(path string, prospects []model.Prospect) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Prospects")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range xlsxHeader {
		header.AddCell().SetString(col)
	}

	for _, p := range prospects {
		a := p.AIAnalysis
		row := sheet.AddRow()
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(string(a.Priority))
		row.AddCell().SetString(fmt.Sprintf("%d", a.DigitalPresenceScore))
		row.AddCell().SetString(p.Address)
		row.AddCell().SetString(p.Phone)
		row.AddCell().SetString(p.Website)
		row.AddCell().SetString(fmt.Sprintf("%.1f", p.Rating))
		row.AddCell().SetString(fmt.Sprintf("%d", p.ReviewCount))
		row.AddCell().SetString(a.RecommendedPackage)
		row.AddCell().SetString(a.EstimatedValue)
		row.AddCell().SetString(strings.Join(a.PainPoints, "; "))
		row.AddCell().SetString(strings.Join(a.TalkingPoints, "; "))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
