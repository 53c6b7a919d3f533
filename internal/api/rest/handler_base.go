package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domainerrors "github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/telemetry"
)

// ResponseEnvelope wraps all API responses
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Meta    ResponseMeta   `json:"meta"`
}

// ResponseMeta contains response metadata
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse provides detailed error information
type ErrorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
	Details map[string]any      `json:"details,omitempty"`
	TraceID string              `json:"trace_id,omitempty"`
}

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	validator  *validator.Validate
	tracer     trace.Tracer
	logger     *slog.Logger
	apiVersion string
}

// NewBaseHandler creates a base handler with the custom validations registered
func NewBaseHandler(apiVersion string, logger *slog.Logger) *BaseHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("uuid", validateUUID)

	return &BaseHandler{
		validator:  v,
		tracer:     otel.Tracer("api.rest"),
		logger:     logger,
		apiVersion: apiVersion,
	}
}

type handlerConfig struct {
	maxBodySize   int64
	timeout       time.Duration
	successStatus int
}

// HandlerOption tunes one wrapped handler
type HandlerOption func(*handlerConfig)

func WithTimeout(d time.Duration) HandlerOption {
	return func(c *handlerConfig) { c.timeout = d }
}

func WithStatus(status int) HandlerOption {
	return func(c *handlerConfig) { c.successStatus = status }
}

// WrapHandler traces a handler, bounds its body and runtime, and writes its
// result or error in the response envelope.
func (h *BaseHandler) WrapHandler(
	name string,
	handler func(context.Context, *http.Request) (any, error),
	opts ...HandlerOption,
) http.HandlerFunc {
	config := &handlerConfig{
		maxBodySize:   1 << 20,
		timeout:       30 * time.Second,
		successStatus: http.StatusOK,
	}
	for _, opt := range opts {
		opt(config)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), name,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.Pattern),
			),
		)
		defer span.End()

		if config.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.timeout)
			defer cancel()
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, config.maxBodySize)
		}
		r = r.WithContext(ctx)

		res, err := handler(ctx, r)
		if err != nil {
			telemetry.RecordError(span, err)
			h.handleError(w, r, err)
			return
		}
		h.writeSuccess(w, r, config.successStatus, res)
	}
}

// ParseAndValidate decodes the JSON body into v and validates it
func (h *BaseHandler) ParseAndValidate(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return domainerrors.NewValidationError("UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return domainerrors.NewValidationError("BODY_TOO_LARGE",
				fmt.Sprintf("request body too large (max %d bytes)", maxBytes.Limit))
		}
		return domainerrors.NewValidationError("INVALID_JSON", "invalid JSON body").WithCause(err)
	}

	if err := h.validator.Struct(v); err != nil {
		return h.formatValidationError(err)
	}
	return nil
}

// PathUUID parses a uuid path parameter
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domainerrors.NewValidationError("INVALID_ID", fmt.Sprintf("%s must be a UUID", name))
	}
	return id, nil
}

// fieldError carries per-field validation messages through the error path
type fieldError struct {
	*domainerrors.AppError
	fields map[string][]string
}

func (e *fieldError) Unwrap() error { return e.AppError }

func (h *BaseHandler) formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return domainerrors.NewValidationError("VALIDATION_FAILED", err.Error())
	}

	fields := make(map[string][]string)
	for _, fe := range validationErrors {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "This field is required"
		case "uuid":
			msg = "Must be a valid UUID"
		case "money":
			msg = "Must be a positive amount with at most two decimal places"
		case "oneof":
			msg = fmt.Sprintf("Must be one of: %s", fe.Param())
		case "min":
			msg = fmt.Sprintf("Minimum is %s", fe.Param())
		case "max":
			msg = fmt.Sprintf("Maximum is %s", fe.Param())
		default:
			msg = fmt.Sprintf("Failed %s validation", fe.Tag())
		}
		fields[fe.Field()] = append(fields[fe.Field()], msg)
	}

	return &fieldError{
		AppError: domainerrors.NewValidationError("VALIDATION_FAILED", "Validation failed"),
		fields:   fields,
	}
}

// handleError maps domain errors onto status codes. Anything that is not
// an AppError is logged and hidden behind a generic 500.
func (h *BaseHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *domainerrors.AppError
	if !errors.As(err, &appErr) {
		switch {
		case errors.Is(err, domainerrors.ErrRecordNotFound):
			appErr = domainerrors.NewNotFoundError("resource")
		case errors.Is(err, context.DeadlineExceeded):
			appErr = domainerrors.NewExternalError("timeout", "request timed out")
			appErr.StatusCode = http.StatusGatewayTimeout
		default:
			appErr = domainerrors.NewInternalError("internal server error")
		}
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}

	resp := &ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
		TraceID: trace.SpanContextFromContext(r.Context()).TraceID().String(),
	}
	if status >= http.StatusInternalServerError && appErr.Type == domainerrors.ErrorTypeInternal {
		resp.Message = "internal server error"
		resp.Details = nil
	}
	var fe *fieldError
	if errors.As(err, &fe) {
		resp.Fields = fe.fields
	}

	h.writeJSON(w, status, ResponseEnvelope{
		Success: false,
		Error:   resp,
		Meta:    h.meta(r),
	})
}

func (h *BaseHandler) writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.writeJSON(w, status, ResponseEnvelope{
		Success: true,
		Data:    data,
		Meta:    h.meta(r),
	})
}

func (h *BaseHandler) meta(r *http.Request) ResponseMeta {
	return ResponseMeta{
		RequestID: RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
		Version:   h.apiVersion,
	}
}

// writeJSON writes JSON response with proper headers
func (h *BaseHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Exponent() >= -2
}

func validateUUID(fl validator.FieldLevel) bool {
	_, err := uuid.Parse(fl.Field().String())
	return err == nil
}
