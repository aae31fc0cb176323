package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errValidation(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func errLinkExpiredOrInvalid() *DomainError {
	return domainError(http.StatusNotFound, "LINK_EXPIRED_OR_INVALID", "Share link is invalid or has expired", nil)
}

func errCapacityExceeded(capacity int) *DomainError {
	return domainError(http.StatusConflict, "CAPACITY_EXCEEDED", "Peer link has reached its capacity", map[string]any{"capacity": capacity})
}

func errDuplicateSubmission() *DomainError {
	return domainError(http.StatusConflict, "DUPLICATE_SUBMISSION", "Feedback already submitted for this assessment", nil)
}

func errInsufficientPeerData(current, required int) *DomainError {
	return domainError(http.StatusConflict, "INSUFFICIENT_PEER_DATA", "Not enough peer feedback yet", map[string]any{
		"current":   current,
		"required":  required,
		"remaining": required - current,
	})
}
