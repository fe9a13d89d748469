package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

var (
	// ErrConfiguration marks a missing server-side sync setting.
	ErrConfiguration = fmt.Errorf("importer: %w", shared.ErrConfiguration)
	// ErrUnknownPaymentMethod is raised before the database would reject the row.
	ErrUnknownPaymentMethod = errors.New("metodo de pago no reconocido")
	// ErrBatchNotFound is returned by GetBatch.
	ErrBatchNotFound = fmt.Errorf("importer: batch %w", shared.ErrNotFound)
)

// FieldIssue pins a validation failure to an item and a canonical field.
type FieldIssue struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a batch before any persistence is attempted.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "importer: invalid batch"
	}
	first := e.Issues[0]
	msg := fmt.Sprintf("importer: item %d: %s: %s", first.Index, first.Field, first.Message)
	if len(e.Issues) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Issues)-1)
	}
	return msg
}

// Unwrap lets callers match shared.ErrValidation.
func (e *ValidationError) Unwrap() error { return shared.ErrValidation }

// Details exposes the issue list to the problem renderer.
func (e *ValidationError) Details() any { return e.Issues }

func (e *ValidationError) add(index int, field, message string) {
	e.Issues = append(e.Issues, FieldIssue{Index: index, Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Reason turns a per-item persistence failure into the text reported back to
// the register. Constraint names are kept so operators can trace the column.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return withConstraint("referencia inexistente", pgErr)
		case "23514":
			return withConstraint("valor fuera de catalogo", pgErr)
		case "23505":
			return withConstraint("registro duplicado", pgErr)
		case "23502":
			if pgErr.ColumnName != "" {
				return "campo requerido: " + pgErr.ColumnName
			}
			return "campo requerido"
		case "57014":
			return "tiempo de espera agotado"
		}
		return strings.TrimSpace(pgErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "tiempo de espera agotado"
	}
	return err.Error()
}

func withConstraint(msg string, pgErr *pgconn.PgError) string {
	detail := msg
	if pgErr.ConstraintName != "" {
		detail += " (" + pgErr.ConstraintName + ")"
	}
	if pgErr.Detail != "" {
		detail += ": " + pgErr.Detail
	}
	return detail
}
