package payment

import (
	"errors"
	"strings"
)

// Status is a payment status as stored in the `payments` table.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid payment status")

// ParseStatus normalizes and validates a payment status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed payment status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Terminal indicates whether the payment reached a final state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusRefunded || status == StatusCancelled
}

// SagaStatus is the lifecycle state of one saga execution.
type SagaStatus string

const (
	SagaPending      SagaStatus = "pending"
	SagaExecuting    SagaStatus = "executing"
	SagaCompleted    SagaStatus = "completed"
	SagaCompensating SagaStatus = "compensating"
	SagaFailed       SagaStatus = "failed"
)

// StepStatus is the state of a single saga step.
type StepStatus string

const (
	StepPending     StepStatus = "pending"
	StepCompleted   StepStatus = "completed"
	StepFailed      StepStatus = "failed"
	StepCompensated StepStatus = "compensated"
)
