package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doUpload(t *testing.T, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	NewHandler().Upload(rec, req)
	return rec
}

func TestUpload_Success(t *testing.T) {
	rec := doUpload(t, "notes.txt", []byte("lecture notes about photosynthesis"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "notes.txt", resp.Filename)
	assert.Equal(t, "lecture notes about photosynthesis", resp.Content)
	assert.Equal(t, len("lecture notes about photosynthesis"), resp.FileSize)
}

func TestUpload_ExtensionAllowList(t *testing.T) {
	for _, name := range []string{"a.txt", "b.md", "c.docx", "d.pdf", "e.csv", "f.xlsx", "G.TXT"} {
		rec := doUpload(t, name, []byte("content"))
		assert.Equal(t, http.StatusOK, rec.Code, "expected %s to be accepted", name)
	}

	rec := doUpload(t, "malware.exe", []byte("content"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"detail":"Only .txt, .md, .docx, .pdf, .csv, and .xlsx files are allowed"}`,
		rec.Body.String())
}

func TestUpload_EmptyFile(t *testing.T) {
	for name, content := range map[string][]byte{
		"zero bytes":      {},
		"only whitespace": []byte("   \n\t "),
	} {
		t.Run(name, func(t *testing.T) {
			rec := doUpload(t, "empty.txt", content)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"detail":"File is empty"}`, rec.Body.String())
		})
	}
}

func TestUpload_InvalidUTF8(t *testing.T) {
	rec := doUpload(t, "binary.txt", []byte{0xff, 0xfe, 0x00, 0x01})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"File must be valid UTF-8 text"}`, rec.Body.String())
}

func TestUpload_MissingFilePart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	NewHandler().Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"A file upload is required"}`, rec.Body.String())
}

func TestUpload_FileTooLarge(t *testing.T) {
	rec := doUpload(t, "big.txt", bytes.Repeat([]byte("a"), maxFileSize+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
