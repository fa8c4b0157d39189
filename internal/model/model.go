package model

import "fmt"

// Bank identifies one of the two question collections.
type Bank string

const (
	// BankMain is the shared question bank every quiz draws from.
	BankMain Bank = "main"
	// BankReview holds questions the user has answered incorrectly.
	BankReview Bank = "review"
)

// ParseBank validates a bank identifier coming from the CLI or the API.
func ParseBank(s string) (Bank, error) {
	switch Bank(s) {
	case BankMain, BankReview:
		return Bank(s), nil
	}
	return "", fmt.Errorf("unknown bank %q (want %q or %q)", s, BankMain, BankReview)
}

// Canonical column names of a bank's header row, in storage order.
const (
	ColPrompt      = "prompt"
	ColChoices     = "choices"
	ColCorrect     = "correct"
	ColExplanation = "explanation"
	ColGenre       = "genre"
)

// Columns is the canonical header row written on bank creation and reset.
var Columns = []string{ColPrompt, ColChoices, ColCorrect, ColExplanation, ColGenre}

// MandatoryColumns are required for quizzing. Legacy sheets may lack genre.
var MandatoryColumns = []string{ColPrompt, ColChoices, ColCorrect, ColExplanation}

// GenreUncategorized is the genre assigned to questions without one.
// Older sheets predate the genre column entirely.
const GenreUncategorized = "uncategorized"

// Question is one multiple-choice question as stored in a bank row.
// Choices is a single encoded string: either comma-separated choice texts
// or concatenated label-prefixed segments ("A:...B:..."). Correct is graded
// by its first character only; any trailing text is display-only.
// The prompt text doubles as the question's identity for review dedup.
type Question struct {
	Prompt      string `json:"prompt"`
	Choices     string `json:"choices"`
	Correct     string `json:"correct"`
	Explanation string `json:"explanation"`
	Genre       string `json:"genre,omitempty"`
}

// Row returns the question's cells in canonical column order.
func (q Question) Row() []string {
	return []string{q.Prompt, q.Choices, q.Correct, q.Explanation, q.Genre}
}
