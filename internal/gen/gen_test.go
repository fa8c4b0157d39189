package gen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ktanaka/fireprep/internal/bank"
	"github.com/ktanaka/fireprep/internal/extract"
	"github.com/ktanaka/fireprep/internal/model"
	"github.com/ktanaka/fireprep/internal/sheet"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `[{"prompt":"p"}]`, `[{"prompt":"p"}]`},
		{"plain fence", "```\n[1,2]\n```", "[1,2]"},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"surrounding whitespace", "  ```json\n[]\n```  ", "[]"},
		{"fence without newline", "```[]```", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseQuestions(t *testing.T) {
	raw := "```json\n" + `[
		{"prompt":"P1","choices":"A:x,B:y,C:z,D:w,E:v","correct":"B","explanation":"because","genre":"law"},
		{"prompt":"P2","choices":"A:x,B:y"}
	]` + "\n```"

	questions, err := parseQuestions(raw)
	if err != nil {
		t.Fatalf("parseQuestions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Correct != "B" || questions[0].Genre != "law" {
		t.Errorf("unexpected first question: %+v", questions[0])
	}
	// Missing fields decode as empty strings, accepted as-is.
	if questions[1].Correct != "" || questions[1].Explanation != "" {
		t.Errorf("expected empty optional fields, got %+v", questions[1])
	}
}

func TestParseQuestionsInvalidJSON(t *testing.T) {
	raw := "Sure! Here are your questions:\n1. What is..."

	_, err := parseQuestions(raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Raw != raw {
		t.Error("ParseError should carry the raw response for diagnosis")
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(3)
	if !strings.Contains(p, "exactly 3") {
		t.Error("prompt should state the requested count")
	}
	for _, field := range []string{"prompt", "choices", "correct", "explanation", "genre"} {
		if !strings.Contains(p, `"`+field+`"`) {
			t.Errorf("prompt should name the %q field", field)
		}
	}
}

func TestGenerateRejectsBadCount(t *testing.T) {
	c := New("", "key", "model")
	for _, n := range []int{0, -1, 6} {
		if _, err := c.Generate(context.Background(), extract.Content{Text: "t"}, n); err == nil {
			t.Errorf("expected error for count %d", n)
		}
	}
}

func newTestBanks(t *testing.T) *bank.Adapter {
	t.Helper()
	s, err := sheet.Open(context.Background(), sheet.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sheet store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	a := bank.New(s)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init banks: %v", err)
	}
	return a
}

// appendParsed mirrors Pipeline.Run from the parse step down, so the
// write-path behavior is testable without a live API.
func appendParsed(t *testing.T, banks *bank.Adapter, raw string) (int, error) {
	t.Helper()
	questions, err := parseQuestions(raw)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, q := range questions {
		if err := banks.Append(context.Background(), model.BankMain, q); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func TestShortBatchAppendsWhatParsed(t *testing.T) {
	banks := newTestBanks(t)

	// Two items against a request for three: both rows land, none invented.
	raw := `[{"prompt":"P1","choices":"A:x,B:y","correct":"A"},
	         {"prompt":"P2","choices":"A:x,B:y","correct":"B"}]`
	added, err := appendParsed(t, banks, raw)
	if err != nil {
		t.Fatalf("append parsed: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 rows appended, got %d", added)
	}

	questions, _ := banks.LoadAll(context.Background(), model.BankMain)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions in main bank, got %d", len(questions))
	}
}

func TestInvalidResponseAppendsNothing(t *testing.T) {
	banks := newTestBanks(t)

	added, err := appendParsed(t, banks, "not json at all")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 rows appended, got %d", added)
	}

	questions, _ := banks.LoadAll(context.Background(), model.BankMain)
	if len(questions) != 0 {
		t.Fatalf("main bank should be untouched, has %d questions", len(questions))
	}
}
