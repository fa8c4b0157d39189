// Package quiz implements the answer codec and the quiz session state
// machine. A Session is a plain value owned by the caller (one per user or
// connection); it holds no ambient state and performs no I/O of its own
// except the single review-bank write on an incorrect answer.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/ktanaka/fireprep/internal/model"
)

// Mode selects which bank a session quizzes from.
type Mode string

const (
	// ModeMain quizzes from the main bank and records mistakes.
	ModeMain Mode = "main"
	// ModeReview re-quizzes previously missed questions. Mistakes in
	// review mode are never recorded again.
	ModeReview Mode = "review"
)

// ParseMode validates a mode string from the API. Empty means main.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMain:
		return ModeMain, nil
	case ModeReview:
		return ModeReview, nil
	}
	return "", fmt.Errorf("unknown quiz mode %q", s)
}

// GenreAll disables genre filtering when drawing.
const GenreAll = "all"

var (
	// ErrNoQuestions means the (filtered) bank had nothing to draw from.
	// Informational, not a failure.
	ErrNoQuestions = errors.New("no questions available")
	// ErrNoCurrent means no question has been drawn yet.
	ErrNoCurrent = errors.New("no question drawn")
	// ErrAlreadyAnswered means the current question was already graded.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNotAnswered means the current question has not been graded yet.
	ErrNotAnswered = errors.New("question not answered yet")
)

// MistakeRecorder is the review-bank write the session performs on an
// incorrect answer.
type MistakeRecorder interface {
	RecordMistake(ctx context.Context, q model.Question) (bool, error)
}

// Session is the per-user quiz state: the current question and whether it
// has been answered. The zero state has no question drawn.
type Session struct {
	Mode Mode

	current  *model.Question
	answered bool
}

func NewSession(mode Mode) *Session {
	return &Session{Mode: mode}
}

// Current returns the currently drawn question, if any.
func (s *Session) Current() (model.Question, bool) {
	if s.current == nil {
		return model.Question{}, false
	}
	return *s.current, true
}

// Answered reports whether the current question has been graded.
func (s *Session) Answered() bool {
	return s.answered
}

// Draw picks one question uniformly at random from the given bank view,
// optionally restricted to a single genre (GenreAll or "" disables the
// filter). It replaces any current question and resets the answered flag.
// An empty view returns ErrNoQuestions and leaves the session unchanged.
func (s *Session) Draw(questions []model.Question, genre string) (model.Question, error) {
	view := questions
	if genre != "" && genre != GenreAll {
		view = nil
		for _, q := range questions {
			if q.Genre == genre {
				view = append(view, q)
			}
		}
	}
	if len(view) == 0 {
		return model.Question{}, ErrNoQuestions
	}

	q := view[rand.Intn(len(view))]
	s.current = &q
	s.answered = false
	return q, nil
}

// Result is the outcome of grading one submission.
type Result struct {
	Correct bool
	// Recorded is true when the question was newly added to the review
	// bank because of this submission.
	Recorded bool
}

// Submit grades the user's choice against the current question. It is
// valid exactly once per drawn question. An incorrect answer in main mode
// is recorded to the review bank through rec; review-mode sessions never
// write (no review-of-review). A recorder failure still returns the graded
// result alongside the error: the answer itself was judged.
func (s *Session) Submit(ctx context.Context, choice string, rec MistakeRecorder) (Result, error) {
	if s.current == nil {
		return Result{}, ErrNoCurrent
	}
	if s.answered {
		return Result{}, ErrAlreadyAnswered
	}

	s.answered = true
	res := Result{Correct: IsCorrect(choice, s.current.Correct)}

	if !res.Correct && s.Mode == ModeMain && rec != nil {
		added, err := rec.RecordMistake(ctx, *s.current)
		if err != nil {
			return res, fmt.Errorf("record mistake: %w", err)
		}
		res.Recorded = added
	}
	return res, nil
}

// Answer is the post-grading reveal: the literal stored correct field and
// the explanation.
type Answer struct {
	Correct     string `json:"correct"`
	Explanation string `json:"explanation"`
}

// Reveal exposes the answer once the current question has been graded.
// Idempotent, no side effects.
func (s *Session) Reveal() (Answer, error) {
	if s.current == nil {
		return Answer{}, ErrNoCurrent
	}
	if !s.answered {
		return Answer{}, ErrNotAnswered
	}
	return Answer{
		Correct:     s.current.Correct,
		Explanation: s.current.Explanation,
	}, nil
}
