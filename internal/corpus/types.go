// Package corpus turns multi-sheet workbooks into a searchable corpus of
// linearized row-snippets.
package corpus

// Sheet is one worksheet as produced by a workbook reader: an ordered column
// list and ordered rows of cell values.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Snippet is one linearized spreadsheet row prefixed with its sheet name.
// IDs are dense positions in the corpus and correspond one-to-one to rows of
// the vector index.
type Snippet struct {
	ID    int
	Sheet string
	Text  string
}

// Corpus is the ordered set of snippets derived from one workbook ingestion.
// It is immutable after construction; ingestion replaces the whole corpus.
type Corpus struct {
	Snippets []Snippet
}

// Len returns the number of snippets.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Snippets)
}

// Texts returns the snippet texts in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.Snippets))
	for i, s := range c.Snippets {
		texts[i] = s.Text
	}
	return texts
}

// Text returns the text of the snippet with the given id.
func (c *Corpus) Text(id int) string {
	return c.Snippets[id].Text
}
