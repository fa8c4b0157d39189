package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ktanaka/fireprep/internal/extract"
	"github.com/ktanaka/fireprep/internal/gen"
	appI18n "github.com/ktanaka/fireprep/internal/i18n"
)

// Generator runs the generation pipeline: content in, rows appended to the
// main bank, count of appended rows out.
type Generator interface {
	Run(ctx context.Context, content extract.Content, n int) (int, error)
}

const maxUploadBytes = 32 << 20

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "parse upload: "+err.Error())
		return
	}

	count := 3
	if v := r.FormValue("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > gen.MaxQuestions {
			respondError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(gen.MaxQuestions))
			return
		}
		count = n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	path, err := saveUpload(file, header.Filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(path)

	content, err := extract.FromFile(ctx, path)
	if errors.Is(err, extract.ErrNoContent) {
		respondError(w, http.StatusUnprocessableEntity, appI18n.T(ctx, "EmptyDocument"))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	added, err := h.generator.Run(ctx, content, count)
	if err != nil {
		var pe *gen.ParseError
		if errors.As(err, &pe) {
			// The raw response goes to the log, not the client.
			slog.Error("generation response unparseable", "raw", pe.Raw, "error", pe.Err)
			respondError(w, http.StatusBadGateway, appI18n.T(ctx, "GenerationFailed"))
			return
		}
		slog.Error("generation failed", "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"added":   added,
		"message": appI18n.Td(ctx, "QuestionsAdded", map[string]any{"Count": added}),
	})
}

// saveUpload writes the upload to a temp file so the extractor can hand a
// path to pdftotext. The original extension is kept for type detection.
func saveUpload(file io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "fireprep-upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, io.LimitReader(file, maxUploadBytes)); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
