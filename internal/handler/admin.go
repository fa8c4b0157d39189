package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/ktanaka/fireprep/internal/i18n"
	"github.com/ktanaka/fireprep/internal/model"
)

func bankFromURL(r *http.Request) (model.Bank, error) {
	return model.ParseBank(chi.URLParam(r, "bank"))
}

func (h *Handler) handleBankTable(w http.ResponseWriter, r *http.Request) {
	b, err := bankFromURL(r)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	columns, rows, err := h.banks.Table(r.Context(), b)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = [][]string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"bank":    b,
		"columns": columns,
		"rows":    rows,
	})
}

func (h *Handler) handleBankReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := bankFromURL(r)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.banks.Reset(ctx, b); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": appI18n.Td(ctx, "BankReset", map[string]any{"Bank": string(b)}),
	})
}
