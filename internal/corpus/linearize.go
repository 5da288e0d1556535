package corpus

import (
	"strings"
)

// Linearize converts sheets into the snippet corpus. For each sheet in
// insertion order, each row becomes one snippet: "col: value" pairs joined
// with "; " across the sheet's columns left to right, prefixed with
// "[sheet_name] ". Empty sheets contribute no snippets. Values are rendered
// exactly as the reader produced them.
func Linearize(sheets []Sheet) *Corpus {
	var snippets []Snippet
	for _, sheet := range sheets {
		for _, row := range sheet.Rows {
			parts := make([]string, len(sheet.Columns))
			for i, col := range sheet.Columns {
				val := ""
				if i < len(row) {
					val = row[i]
				}
				parts[i] = col + ": " + val
			}
			snippets = append(snippets, Snippet{
				ID:    len(snippets),
				Sheet: sheet.Name,
				Text:  "[" + sheet.Name + "] " + strings.Join(parts, "; "),
			})
		}
	}
	return &Corpus{Snippets: snippets}
}
