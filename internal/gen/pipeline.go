package gen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ktanaka/fireprep/internal/bank"
	"github.com/ktanaka/fireprep/internal/extract"
	"github.com/ktanaka/fireprep/internal/model"
)

// Pipeline generates questions from extracted content and appends them to
// the main bank. Whatever the model returns and parses is written; items
// missing fields land as empty strings and are handled leniently at quiz
// time. A parse failure writes nothing.
type Pipeline struct {
	llm   *Client
	banks *bank.Adapter
}

func NewPipeline(llm *Client, banks *bank.Adapter) *Pipeline {
	return &Pipeline{llm: llm, banks: banks}
}

// Run generates up to n questions and appends each to the main bank,
// returning how many rows were written. There is no retry; the caller
// re-issues the whole operation if it wants another attempt.
func (p *Pipeline) Run(ctx context.Context, content extract.Content, n int) (int, error) {
	questions, err := p.llm.Generate(ctx, content, n)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, q := range questions {
		if err := p.banks.Append(ctx, model.BankMain, q); err != nil {
			return added, fmt.Errorf("append generated question: %w", err)
		}
		added++
	}

	if added != n {
		slog.Warn("generation returned a different count than requested",
			"requested", n, "added", added)
	}
	return added, nil
}
