// Package bank adapts the raw row store into typed Question collections.
// It owns the header-row conventions: canonical column order on append,
// tolerance for legacy four-column sheets without genre, and the
// scan-then-append duplicate suppression of the review bank.
package bank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ktanaka/fireprep/internal/model"
	"github.com/ktanaka/fireprep/internal/sheet"
)

// MissingColumnsError reports mandatory columns absent from a bank header.
// Quiz drawing refuses to proceed without them; database and generation
// flows are unaffected.
type MissingColumnsError struct {
	Bank    model.Bank
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("bank %q header is missing columns: %s (reset the bank to restore the header)",
		e.Bank, strings.Join(e.Missing, ", "))
}

// Adapter provides typed access to the question banks.
type Adapter struct {
	rows *sheet.Store
}

func New(rows *sheet.Store) *Adapter {
	return &Adapter{rows: rows}
}

// Init writes the canonical header to any bank that has no rows yet.
// Banks come into existence by having their header written.
func (a *Adapter) Init(ctx context.Context) error {
	for _, b := range []model.Bank{model.BankMain, model.BankReview} {
		count, err := a.rows.RowCount(ctx, string(b))
		if err != nil {
			return fmt.Errorf("count rows in %s: %w", b, err)
		}
		if count == 0 {
			if err := a.rows.Append(ctx, string(b), model.Columns); err != nil {
				return fmt.Errorf("write header for %s: %w", b, err)
			}
		}
	}
	return nil
}

// header maps column names to their position in the bank's header row.
func header(rows [][]string) map[string]int {
	idx := make(map[string]int)
	if len(rows) == 0 {
		return idx
	}
	for i, name := range rows[0] {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

func cell(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// LoadAll returns every question of a bank in storage order, decoded by the
// bank's actual header row. Columns absent from the header decode as empty;
// a question with no genre is filed under model.GenreUncategorized.
func (a *Adapter) LoadAll(ctx context.Context, b model.Bank) ([]model.Question, error) {
	rows, err := a.rows.LoadAll(ctx, string(b))
	if err != nil {
		return nil, fmt.Errorf("load bank %s: %w", b, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	idx := header(rows)
	pos := func(col string) int {
		if p, ok := idx[col]; ok {
			return p
		}
		return -1
	}

	questions := make([]model.Question, 0, len(rows)-1)
	for _, row := range rows[1:] {
		q := model.Question{
			Prompt:      cell(row, pos(model.ColPrompt)),
			Choices:     cell(row, pos(model.ColChoices)),
			Correct:     cell(row, pos(model.ColCorrect)),
			Explanation: cell(row, pos(model.ColExplanation)),
			Genre:       cell(row, pos(model.ColGenre)),
		}
		if q.Genre == "" {
			q.Genre = model.GenreUncategorized
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// CheckColumns verifies that a bank header carries the four mandatory
// columns. An empty bank passes: it has nothing to draw but nothing broken.
func (a *Adapter) CheckColumns(ctx context.Context, b model.Bank) error {
	rows, err := a.rows.LoadAll(ctx, string(b))
	if err != nil {
		return fmt.Errorf("load bank %s: %w", b, err)
	}
	if len(rows) == 0 {
		return nil
	}

	idx := header(rows)
	var missing []string
	for _, col := range model.MandatoryColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Bank: b, Missing: missing}
	}
	return nil
}

// Append writes one question as a row in canonical column order, creating
// the bank's header first if the bank has no rows at all. Missing optional
// fields are stored as empty strings.
func (a *Adapter) Append(ctx context.Context, b model.Bank, q model.Question) error {
	count, err := a.rows.RowCount(ctx, string(b))
	if err != nil {
		return fmt.Errorf("count rows in %s: %w", b, err)
	}
	if count == 0 {
		if err := a.rows.Append(ctx, string(b), model.Columns); err != nil {
			return fmt.Errorf("write header for %s: %w", b, err)
		}
	}
	if err := a.rows.Append(ctx, string(b), q.Row()); err != nil {
		return fmt.Errorf("append to %s: %w", b, err)
	}
	return nil
}

// Reset destructively removes all rows of a bank, then writes exactly the
// canonical header row. There is no undo.
func (a *Adapter) Reset(ctx context.Context, b model.Bank) error {
	if err := a.rows.Clear(ctx, string(b)); err != nil {
		return fmt.Errorf("reset %s: %w", b, err)
	}
	if err := a.rows.Append(ctx, string(b), model.Columns); err != nil {
		return fmt.Errorf("write header for %s: %w", b, err)
	}
	return nil
}

// RecordMistake appends a question to the review bank unless a row with
// exactly the same prompt already exists. Returns whether an append
// happened. The scan and the append are separate calls: two sessions
// missing the same question at the same instant can both insert it.
func (a *Adapter) RecordMistake(ctx context.Context, q model.Question) (bool, error) {
	existing, err := a.LoadAll(ctx, model.BankReview)
	if err != nil {
		return false, err
	}
	for _, e := range existing {
		if e.Prompt == q.Prompt {
			return false, nil
		}
	}
	if err := a.Append(ctx, model.BankReview, q); err != nil {
		return false, err
	}
	return true, nil
}

// Genres returns the distinct genre values present in the main bank,
// sorted alphabetically.
func (a *Adapter) Genres(ctx context.Context) ([]string, error) {
	questions, err := a.LoadAll(ctx, model.BankMain)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var genres []string
	for _, q := range questions {
		if !seen[q.Genre] {
			seen[q.Genre] = true
			genres = append(genres, q.Genre)
		}
	}
	sort.Strings(genres)
	return genres, nil
}

// Table returns a bank's raw header and data rows for the database view.
func (a *Adapter) Table(ctx context.Context, b model.Bank) (columns []string, rows [][]string, err error) {
	all, err := a.rows.LoadAll(ctx, string(b))
	if err != nil {
		return nil, nil, fmt.Errorf("load bank %s: %w", b, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}
