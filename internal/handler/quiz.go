package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ktanaka/fireprep/internal/bank"
	appI18n "github.com/ktanaka/fireprep/internal/i18n"
	"github.com/ktanaka/fireprep/internal/model"
	"github.com/ktanaka/fireprep/internal/quiz"
)

// questionView is what the client sees while a question is open: no correct
// field, no explanation until reveal.
type questionView struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
	Genre   string   `json:"genre"`
}

func bankForMode(mode quiz.Mode) model.Bank {
	if mode == quiz.ModeReview {
		return model.BankReview
	}
	return model.BankMain
}

func (h *Handler) handleDraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mode, err := quiz.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := bankForMode(mode)

	if err := h.banks.CheckColumns(ctx, b); err != nil {
		var mce *bank.MissingColumnsError
		if errors.As(err, &mce) {
			respondError(w, http.StatusConflict, appI18n.Td(ctx, "MissingColumns",
				map[string]any{"Columns": strings.Join(mce.Missing, ", ")}))
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	questions, err := h.banks.LoadAll(ctx, b)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess := h.quizSession(w, r, mode)
	q, err := sess.Draw(questions, r.URL.Query().Get("genre"))
	if errors.Is(err, quiz.ErrNoQuestions) {
		// Not an error: the bank (or filtered view) is simply empty.
		respondJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"message":   appI18n.T(ctx, "NoQuestions"),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"available": true,
		"mode":      mode,
		"question": questionView{
			Prompt:  q.Prompt,
			Choices: quiz.SplitChoices(q.Choices),
			Genre:   q.Genre,
		},
	})
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Choice string `json:"choice"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := h.currentSession(w, r)
	if sess == nil {
		respondError(w, http.StatusConflict, quiz.ErrNoCurrent.Error())
		return
	}

	res, err := sess.Submit(ctx, req.Choice, h.banks)
	switch {
	case errors.Is(err, quiz.ErrNoCurrent), errors.Is(err, quiz.ErrAlreadyAnswered):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		// The answer was graded but the review write failed; report both.
		slog.Error("record mistake failed", "error", err)
		respondJSON(w, http.StatusOK, answerResponse(ctx, res, err.Error()))
		return
	}

	respondJSON(w, http.StatusOK, answerResponse(ctx, res, ""))
}

func answerResponse(ctx context.Context, res quiz.Result, warning string) map[string]any {
	msg := appI18n.T(ctx, "AnswerIncorrect")
	if res.Correct {
		msg = appI18n.T(ctx, "AnswerCorrect")
	}
	out := map[string]any{
		"correct":  res.Correct,
		"recorded": res.Recorded,
		"message":  msg,
	}
	if res.Recorded {
		out["review"] = appI18n.T(ctx, "AddedToReview")
	}
	if warning != "" {
		out["warning"] = warning
	}
	return out
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess := h.currentSession(w, r)
	if sess == nil {
		respondError(w, http.StatusConflict, quiz.ErrNoCurrent.Error())
		return
	}

	ans, err := sess.Reveal()
	switch {
	case errors.Is(err, quiz.ErrNoCurrent), errors.Is(err, quiz.ErrNotAnswered):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, ans)
}

func (h *Handler) handleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.banks.Genres(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"genres": genres})
}
