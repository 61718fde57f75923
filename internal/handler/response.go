// internal/handler/response.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"remittance-service/internal/domain"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type userIDKey struct{}

// WithUserID stores the caller identity taken from the trusted gateway header
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns "" when the request was not authenticated
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func sendSuccess(w http.ResponseWriter, r *http.Request, statusCode int, message string, data interface{}) {
	body := map[string]interface{}{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	render.Status(r, statusCode)
	render.JSON(w, r, body)
}

func sendError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps the domain error taxonomy onto HTTP. Anything unrecognised
// is a 500 with a generic message; internals are only logged.
func statusFor(err error) (int, string) {
	var (
		vErr   *domain.ValidationError
		lErr   *domain.LimitError
		bErr   *domain.InsufficientBalanceError
		cErr   *domain.UnknownCurrencyError
		nwErr  *domain.NoWalletError
		sigErr *domain.SignatureError
		nfErr  *domain.NotFoundError
	)

	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Error()
	case errors.As(err, &lErr):
		return http.StatusUnprocessableEntity, lErr.Error()
	case errors.As(err, &bErr):
		return http.StatusUnprocessableEntity, bErr.Error()
	case errors.As(err, &cErr):
		return http.StatusBadRequest, cErr.Error()
	case errors.As(err, &nwErr):
		return http.StatusBadRequest, "no wallet found, open GET /api/v1/wallet first"
	case errors.As(err, &sigErr):
		return http.StatusUnauthorized, sigErr.Error()
	case errors.As(err, &nfErr):
		return http.StatusNotFound, nfErr.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrProviderNotFound):
		return http.StatusNotFound, domain.ErrProviderNotFound.Error()
	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusConflict, domain.ErrLockNotAcquired.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func sendDomainError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	code, message := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	sendError(w, r, code, message)
}
