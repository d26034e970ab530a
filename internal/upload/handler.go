// Package upload serves POST /upload/: it accepts a document and returns its
// text content for the client to feed into summarization.
package upload

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/edusummarizer/hub/internal/api"
)

const maxFileSize = 10 << 20 // 10 MiB

// allowedExtensions is fixed; the error message enumerates it in this order.
var allowedExtensions = []string{".txt", ".md", ".docx", ".pdf", ".csv", ".xlsx"}

func extensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

type Response struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	FileSize int    `json:"file_size"`
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// Cap covers the file plus multipart framing overhead; the exact file
	// size check happens after reading the part.
	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		api.HandleError(w, api.NewValidationError("A file upload is required"))
		return
	}
	defer file.Close()

	if !extensionAllowed(header.Filename) {
		api.HandleError(w, api.NewValidationError(
			"Only .txt, .md, .docx, .pdf, .csv, and .xlsx files are allowed"))
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("Could not read uploaded file"))
		return
	}
	if len(content) > maxFileSize {
		api.HandleError(w, api.NewValidationError("File is too large (max 10MB)"))
		return
	}

	text := string(content)
	if !utf8.ValidString(text) {
		api.HandleError(w, api.NewValidationError("File must be valid UTF-8 text"))
		return
	}
	if strings.TrimSpace(text) == "" {
		api.HandleError(w, api.NewValidationError("File is empty"))
		return
	}

	api.JSON(w, http.StatusOK, Response{
		Filename: header.Filename,
		Content:  text,
		FileSize: len(content),
	})
}
