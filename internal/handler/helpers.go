package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/cartstore"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/service"
	"github.com/shopspring/decimal"
)

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidPriority) ||
		errors.Is(err, service.ErrInvalidMenuItemID) ||
		errors.Is(err, service.ErrInvalidGuestCount) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrInsufficientCash) ||
		errors.Is(err, service.ErrUnknownTableAction)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrKOTNotFound) ||
		errors.Is(err, service.ErrNotSettled) ||
		errors.Is(err, service.ErrCustomerNotFound)
}

func isConflictError(err error) bool {
	return errors.Is(err, pos.ErrInvalidTransition) ||
		errors.Is(err, pos.ErrInvalidTableTransition) ||
		errors.Is(err, pos.ErrTableBusy) ||
		errors.Is(err, service.ErrStatusConflict) ||
		errors.Is(err, service.ErrNotBillable) ||
		errors.Is(err, cartstore.ErrConflict)
}

// writeServiceError maps service and domain errors to a status code.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isNotFoundError(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// urlUUID parses a UUID path parameter, writing a 400 when it is malformed.
func urlUUID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func parsePrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

// parseOptionalDecimal treats an empty string as zero.
func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	return service.NumericToDecimal(n).StringFixed(2)
}
