package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tutortoise/dog-breed-detector/models"
)

var breeds = []models.Prediction{
	{Label: "beagle", Confidence: 81.5, Index: 2},
	{Label: "basset", Confidence: 10.25, Index: 0},
	{Label: "pug", Confidence: 3, Index: 1},
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(16, 16, color.NRGBA{R: 200, A: 255}), imaging.PNG))
	return buf.Bytes()
}

func newTestServer(t *testing.T, stub *stubRecognizer, timeout time.Duration) (*Server, *DetectorPool) {
	t.Helper()
	pool := newStubPool(t, 1, timeout, stub)
	t.Cleanup(func() { pool.Destroy() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(pool, []string{"basset", "pug", "beagle"}, 2, 0, logger), pool
}

func serveRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestClassifyRawBody(t *testing.T) {
	s, _ := newTestServer(t, &stubRecognizer{predictions: breeds}, time.Second)

	rec := serveRequest(s, httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader(pngBytes(t))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[ClassificationResponse](t, rec)
	assert.Equal(t, "beagle", resp.Label)
	assert.Equal(t, float32(81.5), resp.Confidence)
	assert.Len(t, resp.Predictions, 2)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClassifyJSONBody(t *testing.T) {
	s, _ := newTestServer(t, &stubRecognizer{predictions: breeds}, time.Second)

	body := `{"image":"` + base64.StdEncoding.EncodeToString(pngBytes(t)) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/classify?top_k=0", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	rec := serveRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[ClassificationResponse](t, rec)
	assert.Equal(t, "beagle", resp.Label)
	assert.Len(t, resp.Predictions, 3)
}

func TestClassifyMultipart(t *testing.T) {
	s, _ := newTestServer(t, &stubRecognizer{predictions: breeds}, time.Second)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "dog.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/classify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serveRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "beagle", decodeBody[ClassificationResponse](t, rec).Label)
}

func TestClassifyBadRequests(t *testing.T) {
	stub := &stubRecognizer{predictions: breeds}
	s, _ := newTestServer(t, stub, time.Second)

	rec := serveRequest(s, httptest.NewRequest(http.MethodPost, "/classify", bytes.NewBufferString("not an image")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_image", decodeBody[ErrorResponse](t, rec).Code)

	rec = serveRequest(s, httptest.NewRequest(http.MethodPost, "/classify", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody[ErrorResponse](t, rec).Code)

	rec = serveRequest(s, httptest.NewRequest(http.MethodPost, "/classify?top_k=abc", bytes.NewReader(pngBytes(t))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/classify", bytes.NewBufferString(`{"image":"***"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serveRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, stub.calls)
}

func TestClassifyInferenceFailure(t *testing.T) {
	stub := &stubRecognizer{err: &models.InferenceError{Message: "score vector has 2 entries, label set has 3"}}
	s, pool := newTestServer(t, stub, time.Second)

	rec := serveRequest(s, httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader(pngBytes(t))))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "classification_failed", resp.Code)
	assert.Equal(t, MsgCouldNotClassify, resp.Message)

	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestClassifyBusy(t *testing.T) {
	s, pool := newTestServer(t, &stubRecognizer{predictions: breeds}, 10*time.Millisecond)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(held)

	rec := serveRequest(s, httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader(pngBytes(t))))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, MsgBusy, decodeBody[ErrorResponse](t, rec).Message)
}

func TestInfoEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &stubRecognizer{predictions: breeds}, time.Second)

	rec := serveRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody[map[string]string](t, rec)["status"])

	rec = serveRequest(s, httptest.NewRequest(http.MethodGet, "/labels", nil))
	assert.Equal(t, []string{"basset", "pug", "beagle"}, decodeBody[map[string][]string](t, rec)["labels"])

	serveRequest(s, httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader(pngBytes(t))))
	rec = serveRequest(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	stats := decodeBody[PoolStats](t, rec)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(1), stats.TotalAcquired)

	rec = serveRequest(s, httptest.NewRequest(http.MethodGet, "/classify", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
