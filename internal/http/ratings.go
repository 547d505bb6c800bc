package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Clark-Hu/ratings-api/internal/domain"
	"github.com/Clark-Hu/ratings-api/internal/repository"
)

const maxRequestBody = 1 << 20 // 1 MiB

const deviceIDHeader = "X-Device-Id"

const (
	msgMissingFields  = "Missing required fields: identifier, rating"
	msgIdentifierType = "identifier must be a string"
	msgIdentifierLong = "identifier must be at most 255 characters"
	msgCommentsType   = "comments must be a string"
	msgDeviceIDLong   = deviceIDHeader + " must be at most 255 characters"
	msgBodyTooLarge   = "Request body too large"
)

var msgRatingRange = fmt.Sprintf("Rating must be between %d and %d", domain.MinScore, domain.MaxScore)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("score", func(fl validator.FieldLevel) bool {
		return domain.ValidScore(int(fl.Field().Int()))
	}); err != nil {
		panic(err)
	}
	return v
}

// Accepted timestamp layouts, most specific first. Parsing without a zone
// yields UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var errNotInteger = errors.New("rating is not an integer")

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type createRatingResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

type listRatingsResponse struct {
	Success bool                `json:"success"`
	Data    []domain.RatingView `json:"data"`
}

// createRatingInput is the create payload after decoding and rating coercion.
type createRatingInput struct {
	Identifier string `validate:"required,max=255"`
	Rating     int    `validate:"score"`
	Comments   *string
	Timestamp  string
	DeviceID   string `validate:"max=255"`
}

// validationError is a client mistake answered with 400.
type validationError struct {
	message string
}

func (e *validationError) Error() string { return e.message }

func invalid(message string) error { return &validationError{message: message} }

func (s *Server) handleCreateRating(w http.ResponseWriter, r *http.Request) {
	input, err := decodeCreateRating(w, r)
	if err != nil {
		var verr *validationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.message)
			return
		}
		s.logger.Error("decode rating failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	createdAt := s.now().UTC()
	if input.Timestamp != "" {
		if ts, ok := parseTimestamp(input.Timestamp); ok {
			createdAt = ts
		}
	}

	rating, err := s.ratings.Create(r.Context(), repository.RatingCreateParams{
		Identifier: input.Identifier,
		Value:      input.Rating,
		Comments:   input.Comments,
		DeviceID:   input.DeviceID,
		CreatedAt:  createdAt,
	})
	if err != nil {
		s.logger.Error("create rating failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("identifier", input.Identifier),
			zap.Error(err),
		)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, createRatingResponse{Success: true, ID: rating.ID})
}

func (s *Server) handleGetRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := s.ratings.List(r.Context())
	if err != nil {
		s.logger.Error("list ratings failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data := make([]domain.RatingView, 0, len(ratings))
	for _, rating := range ratings {
		data = append(data, rating.View())
	}
	s.respondJSON(w, http.StatusOK, listRatingsResponse{Success: true, Data: data})
}

// decodeCreateRating reads and validates the create payload. Checks run in a
// fixed order: required fields, then the rating range, then the remaining
// field constraints.
func decodeCreateRating(w http.ResponseWriter, r *http.Request) (createRatingInput, error) {
	var input createRatingInput

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()

	var body map[string]json.RawMessage
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return input, bodyError(err)
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return input, bodyError(err)
	}

	rawIdentifier, hasIdentifier := body["identifier"]
	rawRating, hasRating := body["rating"]
	if !hasIdentifier || !hasRating || isNull(rawIdentifier) || isNull(rawRating) {
		return input, invalid(msgMissingFields)
	}

	if err := json.Unmarshal(rawIdentifier, &input.Identifier); err != nil {
		return input, invalid(msgIdentifierType)
	}

	// Uncoercible values fall through as 0 and fail the range rule.
	if value, err := coerceRating(rawRating); err == nil {
		input.Rating = value
	}

	if raw, ok := body["comments"]; ok && !isNull(raw) {
		var comments string
		if err := json.Unmarshal(raw, &comments); err != nil {
			return input, invalid(msgCommentsType)
		}
		input.Comments = &comments
	}

	// A non-string timestamp is treated like an unparseable one.
	if raw, ok := body["timestamp"]; ok && !isNull(raw) {
		_ = json.Unmarshal(raw, &input.Timestamp)
	}

	input.DeviceID = strings.TrimSpace(r.Header.Get(deviceIDHeader))
	if input.DeviceID == "" {
		input.DeviceID = domain.DefaultDeviceID
	}

	if err := validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return input, fmt.Errorf("validate rating: %w", err)
		}
		return input, invalid(validationMessage(fieldErrs[0]))
	}
	return input, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return invalid(msgBodyTooLarge)
	}
	return invalid(msgMissingFields)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Identifier":
		if fe.Tag() == "required" {
			return msgMissingFields
		}
		return msgIdentifierLong
	case "Rating":
		return msgRatingRange
	case "DeviceID":
		return msgDeviceIDLong
	default:
		return fmt.Sprintf("invalid value for %s", fe.Field())
	}
}

// coerceRating converts a JSON value to an int: integers as-is, fractional
// numbers truncated toward zero, integer strings parsed, booleans as 1/0.
func coerceRating(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, errNotInteger
	}

	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return clampInt(i)
		}
		f, err := t.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, errNotInteger
		}
		f = math.Trunc(f)
		if f < math.MinInt32 || f > math.MaxInt32 {
			return 0, errNotInteger
		}
		return int(f), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, errNotInteger
		}
		return clampInt(i)
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errNotInteger
	}
}

func clampInt(i int64) (int, error) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, errNotInteger
	}
	return int(i), nil
}

// parseTimestamp parses an ISO-8601 value and reports whether it succeeded.
func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{
		Success: false,
		Error:   message,
	})
}
