package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSignature           = errors.New("signature error")
	ErrTypeUnknown         = errors.New("type unknown")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrNameRejected        = errors.New("name rejected")
	ErrAllocationExhausted = errors.New("allocation exhausted")
	ErrExternalTool        = errors.New("external tool error")
	ErrValidation          = errors.New("validation error")
	ErrConfiguration       = errors.New("configuration error")
	ErrTimeout             = errors.New("timeout")
	ErrTransient           = errors.New("transient failure")
)

// Route names the destination a failed record is sent to.
type Route string

const (
	RouteFailed     Route = "failed"
	RouteQuarantine Route = "quarantine"
	RouteSkip       Route = "skip"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later outcome classification. The marker should be one
// of the exported sentinel errors above.
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

// FailureRoute maps a per-file error to where the pipeline should leave the file.
// Signature failures leave the file untouched; unresolved types go to quarantine;
// everything else is a failure.
func FailureRoute(err error) Route {
	switch {
	case errors.Is(err, ErrSignature):
		return RouteSkip
	case errors.Is(err, ErrTypeUnknown):
		return RouteQuarantine
	default:
		return RouteFailed
	}
}

// IsFatal reports whether err describes an environment-level failure that should
// abort the whole run instead of a single file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
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
