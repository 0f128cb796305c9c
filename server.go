package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/Tutortoise/dog-breed-detector/detections"
	"github.com/Tutortoise/dog-breed-detector/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	pool      *DetectorPool
	labels    []string
	topK      int
	maxUpload int64
	logger    *slog.Logger
}

type ClassificationResponse struct {
	RequestID   string              `json:"request_id"`
	Label       string              `json:"label"`
	Confidence  float32             `json:"confidence"`
	Predictions []models.Prediction `json:"predictions"`
}

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func NewServer(pool *DetectorPool, labels []string, topK int, maxUpload int64, logger *slog.Logger) *Server {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Server{
		pool:      pool,
		labels:    labels,
		topK:      topK,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/labels", s.handleLabels).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	return r
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	startTotal := time.Now()
	requestID := uuid.NewString()
	timings := &models.ProcessingTimings{RequestID: requestID}
	ctx := r.Context()

	topK := s.topK
	if v := r.URL.Query().Get("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 0 {
			sendErrorResponse(w, requestID, "invalid_request", "top_k must be a non-negative integer", http.StatusBadRequest)
			return
		}
		topK = k
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	imgBytes, err := readImageBytes(r, s.maxUpload)
	if err != nil {
		sendErrorResponse(w, requestID, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	decodeStart := time.Now()
	img, err := decodeImage(imgBytes)
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		sendErrorResponse(w, requestID, "invalid_image", MsgInvalidImage, http.StatusBadRequest)
		return
	}

	detector, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Warn("detector unavailable", "request_id", requestID, "error", err)
		sendErrorResponse(w, requestID, "busy", MsgBusy, http.StatusServiceUnavailable)
		return
	}
	predictions, err := detector.Process(ctx, img, topK, timings)
	if releaseErr := s.pool.Release(detector); releaseErr != nil {
		s.logger.Error("release detector", "request_id", requestID, "error", releaseErr)
	}
	if err != nil {
		s.logger.Error("classification failed", "request_id", requestID, "error", err)
		switch {
		case errors.Is(err, detections.ErrInvalidImage):
			sendErrorResponse(w, requestID, "invalid_image", MsgInvalidImage, http.StatusBadRequest)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			sendErrorResponse(w, requestID, "cancelled", err.Error(), http.StatusServiceUnavailable)
		default:
			sendErrorResponse(w, requestID, "classification_failed", MsgCouldNotClassify, http.StatusInternalServerError)
		}
		return
	}

	timings.Total = time.Since(startTotal)
	s.logTimings(timings)

	best := predictions[0]
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClassificationResponse{
		RequestID:   requestID,
		Label:       best.Label,
		Confidence:  best.Confidence,
		Predictions: predictions,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleLabels(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"labels": s.labels})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.pool.Stats())
}

func (s *Server) logTimings(t *models.ProcessingTimings) {
	s.logger.Debug("processing times",
		"request_id", t.RequestID,
		"image_decode", t.ImageDecode,
		"resize", t.Resize,
		"preprocess", t.Preprocess,
		"inference", t.Inference,
		"postprocess", t.Postprocess,
		"total", t.Total,
	)
}

// readImageBytes accepts a JSON body with a base64 image, a multipart form
// with an "image" or "file" field, or the raw image as the body.
func readImageBytes(r *http.Request, maxUpload int64) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	var data []byte
	switch mediaType {
	case "application/json":
		data, err = handleJSONRequest(r)
	case "multipart/form-data":
		data, err = handleMultipartRequest(r, maxUpload)
	default:
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("no image provided")
	}
	return data, nil
}

func handleJSONRequest(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}

func handleMultipartRequest(r *http.Request, maxUpload int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, err
	}

	for _, field := range []string{"image", "file"} {
		file, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return nil, errors.New("no image file provided, use 'image' as the form field name")
}

func decodeImage(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

func sendErrorResponse(w http.ResponseWriter, requestID, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}
