package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient     = errors.New("transient external error")
	ErrMalformed     = errors.New("malformed response")
	ErrConstraint    = errors.New("constraint violation")
	ErrFatal         = errors.New("fatal pipeline error")
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrConflict      = errors.New("concurrent run conflict")
)

// Kind is the pipeline-level classification of an error. Components classify
// failures before they cross a component boundary so the orchestrator never
// inspects collaborator-specific error shapes.
type Kind string

const (
	KindNone       Kind = ""
	KindTransient  Kind = "transient"
	KindMalformed  Kind = "malformed"
	KindConstraint Kind = "constraint"
	KindConflict   Kind = "conflict"
	KindFatal      Kind = "fatal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error onto the taxonomy. Unmarked errors are fatal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrFatal), errors.Is(err, ErrConfiguration):
		return KindFatal
	case errors.Is(err, ErrConstraint):
		return KindConstraint
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrValidation):
		return KindMalformed
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindFatal
	}
}

// Fatal promotes err to a FatalPipelineError while keeping the original chain.
func Fatal(stage, message string, err error) error {
	if errors.Is(err, ErrFatal) {
		return err
	}
	return Wrap(ErrFatal, stage, "", message, err)
}

// FailureClass returns a short human label for notification bodies.
func FailureClass(err error) string {
	switch Classify(err) {
	case KindTransient:
		return "external service unavailable"
	case KindMalformed:
		return "invalid response from external service"
	case KindConstraint:
		return "size or format constraint exceeded"
	case KindConflict:
		return "another run already processed these newsletters"
	case KindNone:
		return "none"
	default:
		if errors.Is(err, ErrConfiguration) {
			return "configuration problem"
		}
		return "pipeline failure"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
