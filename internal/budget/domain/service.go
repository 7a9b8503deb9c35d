package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type LineItemInput struct {
	Name        string        `json:"name"`
	Price       float64       `json:"price"`
	Quantity    int           `json:"quantity"`
	Tooth       string        `json:"tooth,omitempty"`
	Face        string        `json:"face,omitempty"`
	TreatmentID *snowflake.ID `json:"treatment_id,omitempty"`
}

type CreateBudgetRequest struct {
	PatientID snowflake.ID
	Title     string
	Items     []LineItemInput
}

type AddLineItemRequest struct {
	PatientID snowflake.ID
	Item      LineItemInput
}

type Service interface {
	Create(ctx context.Context, req CreateBudgetRequest) (Budget, error)
	AddLineItem(ctx context.Context, req AddLineItemRequest) (Budget, error)
	SetStatus(ctx context.Context, budgetID snowflake.ID, status BudgetStatus) (Budget, error)
	GetByID(ctx context.Context, budgetID snowflake.ID) (Budget, error)
	ListByPatient(ctx context.Context, patientID snowflake.ID) ([]Budget, error)
}

var (
	ErrInvalidPatient    = errors.New("invalid_patient")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotAcceptable     = errors.New("not_acceptable")
	ErrNotFound          = errors.New("not_found")
)
