package bank

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ktanaka/fireprep/internal/model"
	"github.com/ktanaka/fireprep/internal/quiz"
	"github.com/ktanaka/fireprep/internal/sheet"
)

func newTestAdapter(t *testing.T) (*Adapter, *sheet.Store) {
	t.Helper()
	s, err := sheet.Open(context.Background(), sheet.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sheet store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	a := New(s)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init banks: %v", err)
	}
	return a, s
}

func sampleQuestion(prompt string) model.Question {
	return model.Question{
		Prompt:      prompt,
		Choices:     "A:x,B:y,C:z,D:w,E:v",
		Correct:     "B",
		Explanation: "because",
		Genre:       "law",
	}
}

func TestInitWritesHeaders(t *testing.T) {
	a, s := newTestAdapter(t)
	ctx := context.Background()

	for _, b := range []model.Bank{model.BankMain, model.BankReview} {
		rows, err := s.LoadAll(ctx, string(b))
		if err != nil {
			t.Fatalf("LoadAll %s: %v", b, err)
		}
		if len(rows) != 1 {
			t.Fatalf("bank %s: expected exactly the header row, got %d rows", b, len(rows))
		}
		if !reflect.DeepEqual(rows[0], model.Columns) {
			t.Errorf("bank %s: unexpected header %v", b, rows[0])
		}
	}

	// Init is idempotent.
	if err := a.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	rows, _ := s.LoadAll(ctx, string(model.BankMain))
	if len(rows) != 1 {
		t.Errorf("second Init must not duplicate the header, got %d rows", len(rows))
	}
}

func TestAppendAndLoadAll(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Append(ctx, model.BankMain, sampleQuestion("P1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := a.Append(ctx, model.BankMain, model.Question{Prompt: "P2", Choices: "A:x,B:y", Correct: "A"}); err != nil {
		t.Fatalf("Append partial: %v", err)
	}

	questions, err := a.LoadAll(ctx, model.BankMain)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Prompt != "P1" || questions[0].Genre != "law" {
		t.Errorf("unexpected first question: %+v", questions[0])
	}
	// Partial question: empty optional fields, genre defaulted.
	if questions[1].Explanation != "" {
		t.Errorf("expected empty explanation, got %q", questions[1].Explanation)
	}
	if questions[1].Genre != model.GenreUncategorized {
		t.Errorf("expected genre %q, got %q", model.GenreUncategorized, questions[1].Genre)
	}
}

func TestLoadAllLegacyFourColumnHeader(t *testing.T) {
	a, s := newTestAdapter(t)
	ctx := context.Background()

	// Simulate a sheet from before the genre column existed.
	if err := s.Clear(ctx, string(model.BankMain)); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	legacy := []string{"prompt", "choices", "correct", "explanation"}
	_ = s.Append(ctx, string(model.BankMain), legacy)
	_ = s.Append(ctx, string(model.BankMain), []string{"old P", "A:x,B:y", "A", "why"})

	questions, err := a.LoadAll(ctx, model.BankMain)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if questions[0].Genre != model.GenreUncategorized {
		t.Errorf("legacy rows must default genre, got %q", questions[0].Genre)
	}
	if questions[0].Explanation != "why" {
		t.Errorf("expected explanation 'why', got %q", questions[0].Explanation)
	}

	// Four mandatory columns are present, so quizzing is allowed.
	if err := a.CheckColumns(ctx, model.BankMain); err != nil {
		t.Errorf("CheckColumns on legacy header: %v", err)
	}
}

func TestCheckColumnsMissing(t *testing.T) {
	a, s := newTestAdapter(t)
	ctx := context.Background()

	_ = s.Clear(ctx, string(model.BankMain))
	_ = s.Append(ctx, string(model.BankMain), []string{"prompt", "answer"})

	err := a.CheckColumns(ctx, model.BankMain)
	var mce *MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	want := []string{"choices", "correct", "explanation"}
	if !reflect.DeepEqual(mce.Missing, want) {
		t.Errorf("expected missing %v, got %v", want, mce.Missing)
	}

	// A bank with no rows at all is fine: nothing to draw, nothing broken.
	_ = s.Clear(ctx, string(model.BankMain))
	if err := a.CheckColumns(ctx, model.BankMain); err != nil {
		t.Errorf("CheckColumns on empty bank: %v", err)
	}
}

func TestReset(t *testing.T) {
	a, s := newTestAdapter(t)
	ctx := context.Background()

	_ = a.Append(ctx, model.BankMain, sampleQuestion("P1"))
	_ = a.Append(ctx, model.BankMain, sampleQuestion("P2"))

	if err := a.Reset(ctx, model.BankMain); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	rows, err := s.LoadAll(ctx, string(model.BankMain))
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly the header after reset, got %d rows", len(rows))
	}
	if !reflect.DeepEqual(rows[0], model.Columns) {
		t.Errorf("unexpected header after reset: %v", rows[0])
	}

	questions, _ := a.LoadAll(ctx, model.BankMain)
	if len(questions) != 0 {
		t.Errorf("expected 0 questions after reset, got %d", len(questions))
	}
}

func TestRecordMistakeIdempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()
	q := sampleQuestion("P1")

	added, err := a.RecordMistake(ctx, q)
	if err != nil {
		t.Fatalf("RecordMistake: %v", err)
	}
	if !added {
		t.Fatal("expected first RecordMistake to append")
	}

	added, err = a.RecordMistake(ctx, q)
	if err != nil {
		t.Fatalf("second RecordMistake: %v", err)
	}
	if added {
		t.Error("expected second RecordMistake to be suppressed")
	}

	review, _ := a.LoadAll(ctx, model.BankReview)
	if len(review) != 1 {
		t.Fatalf("expected exactly 1 review row, got %d", len(review))
	}

	// Dedup is exact string equality on the prompt, not normalized.
	q2 := q
	q2.Prompt = "P1 "
	added, err = a.RecordMistake(ctx, q2)
	if err != nil {
		t.Fatalf("RecordMistake with padded prompt: %v", err)
	}
	if !added {
		t.Error("prompt differing by whitespace is a different question")
	}
}

func TestGenres(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()

	genres, err := a.Genres(ctx)
	if err != nil {
		t.Fatalf("Genres: %v", err)
	}
	if len(genres) != 0 {
		t.Errorf("expected no genres in empty bank, got %v", genres)
	}

	_ = a.Append(ctx, model.BankMain, model.Question{Prompt: "P1", Genre: "tactics"})
	_ = a.Append(ctx, model.BankMain, model.Question{Prompt: "P2", Genre: "law"})
	_ = a.Append(ctx, model.BankMain, model.Question{Prompt: "P3", Genre: "law"})
	_ = a.Append(ctx, model.BankMain, model.Question{Prompt: "P4"})

	genres, err = a.Genres(ctx)
	if err != nil {
		t.Fatalf("Genres: %v", err)
	}
	want := []string{"law", "tactics", model.GenreUncategorized}
	if !reflect.DeepEqual(genres, want) {
		t.Errorf("expected %v, got %v", want, genres)
	}
}

func TestTable(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()

	_ = a.Append(ctx, model.BankMain, sampleQuestion("P1"))

	columns, rows, err := a.Table(ctx, model.BankMain)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if !reflect.DeepEqual(columns, model.Columns) {
		t.Errorf("unexpected columns: %v", columns)
	}
	if len(rows) != 1 || rows[0][0] != "P1" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

// The full draw/submit/review cycle against a real adapter.
func TestQuizFlowAgainstBank(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Append(ctx, model.BankMain, sampleQuestion("P1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	questions, err := a.LoadAll(ctx, model.BankMain)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	sess := quiz.NewSession(quiz.ModeMain)
	q, err := sess.Draw(questions, quiz.GenreAll)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if q.Prompt != "P1" {
		t.Fatalf("expected P1, got %q", q.Prompt)
	}

	// Correct answer leaves the review bank untouched.
	res, err := sess.Submit(ctx, "B", a)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Correct || res.Recorded {
		t.Fatalf("expected correct and unrecorded, got %+v", res)
	}
	review, _ := a.LoadAll(ctx, model.BankReview)
	if len(review) != 0 {
		t.Fatalf("review bank should be empty, has %d rows", len(review))
	}

	// Incorrect answer lands the question in the review bank once.
	if _, err := sess.Draw(questions, quiz.GenreAll); err != nil {
		t.Fatalf("redraw: %v", err)
	}
	res, err = sess.Submit(ctx, "A", a)
	if err != nil {
		t.Fatalf("Submit incorrect: %v", err)
	}
	if res.Correct || !res.Recorded {
		t.Fatalf("expected incorrect and recorded, got %+v", res)
	}
	review, _ = a.LoadAll(ctx, model.BankReview)
	if len(review) != 1 || review[0].Prompt != "P1" {
		t.Fatalf("expected review bank [P1], got %+v", review)
	}
}
