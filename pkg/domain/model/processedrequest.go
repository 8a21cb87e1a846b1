package model

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProcessedRequestNotFound = errors.New("processed request not found")
	ErrDuplicateRequest         = errors.New("processed request already stored")
	ErrRequestIDRequired        = errors.New("request id is required")
	ErrRequestIDConflict        = errors.New("request id already used by another command")
)

type CommandType string

const (
	CreateOrderCommand CommandType = "CreateOrder"
	CancelOrderCommand CommandType = "CancelOrder"
	ShipOrderCommand   CommandType = "ShipOrder"
)

// ProcessedRequest is a write-once ledger entry holding the serialized result of a command.
type ProcessedRequest struct {
	RequestID   string
	CommandType CommandType
	Result      []byte
	CreatedAt   time.Time
}

type ProcessedRequestRepository interface {
	Find(ctx context.Context, requestID string) (*ProcessedRequest, error)
	// Store returns ErrDuplicateRequest when the request id is already present.
	Store(ctx context.Context, request *ProcessedRequest) error
}
