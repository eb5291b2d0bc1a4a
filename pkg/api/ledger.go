// Package api defines the wire messages of ducats.v1.LedgerService and the
// Connect handler and client constructors for it. Messages are plain structs
// carried as JSON.
package api

import "time"

// Project is a project as seen over the wire.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Completed    bool      `json:"completed"`
	ExpenseCount int       `json:"expense_count"`
	Total        string    `json:"total"`
	Expenses     []Expense `json:"expenses,omitempty"`
}

// Expense is a ledger entry. Amounts are decimal strings.
type Expense struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Amount        string    `json:"amount"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description,omitempty"`
	WhereMade     string    `json:"where_made,omitempty"`
	WhatPurchased string    `json:"what_purchased,omitempty"`
	HasReceipt    bool      `json:"has_receipt"`
	ReceiptDigest string    `json:"receipt_digest,omitempty"`
	ReceiptImage  []byte    `json:"receipt_image,omitempty"`
}

// ExpenseInput carries the fields of an add or edit. A zero Date means now on
// add and keeps the stored date on edit.
// On edit, the stored receipt is kept unless ReceiptImage is set or
// ClearReceipt is true.
type ExpenseInput struct {
	Amount        string    `json:"amount"`
	Date          time.Time `json:"date,omitzero"`
	Description   string    `json:"description,omitempty"`
	WhereMade     string    `json:"where_made,omitempty"`
	WhatPurchased string    `json:"what_purchased,omitempty"`
	ReceiptImage  []byte    `json:"receipt_image,omitempty"`
	ClearReceipt  bool      `json:"clear_receipt,omitempty"`
}

// ExportStatus describes an export attempt.
type ExportStatus struct {
	AttemptID   string `json:"attempt_id"`
	ProjectID   string `json:"project_id"`
	Sink        string `json:"sink"`
	State       string `json:"state"`
	Outcome     string `json:"outcome,omitempty"`
	Destination string `json:"destination,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

type CreateProjectRequest struct {
	Name    string `json:"name"`
	Details string `json:"details,omitempty"`
}

type CreateProjectResponse struct {
	Project *Project `json:"project"`
}

type GetProjectRequest struct {
	ProjectID       string `json:"project_id"`
	IncludeReceipts bool   `json:"include_receipts,omitempty"`
}

type GetProjectResponse struct {
	Project *Project `json:"project"`
}

type ListProjectsRequest struct {
	Filter string `json:"filter,omitempty"` // all | active | completed
}

type ListProjectsResponse struct {
	Projects []*Project `json:"projects"`
}

type UpdateProjectRequest struct {
	ProjectID string  `json:"project_id"`
	Name      *string `json:"name,omitempty"`
	Details   *string `json:"details,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

type UpdateProjectResponse struct {
	Project *Project `json:"project"`
}

type DeleteProjectRequest struct {
	ProjectID string `json:"project_id"`
}

type DeleteProjectResponse struct{}

type AddExpenseRequest struct {
	ProjectID string       `json:"project_id"`
	Expense   ExpenseInput `json:"expense"`
}

type AddExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type UpdateExpenseRequest struct {
	ProjectID string       `json:"project_id"`
	ExpenseID string       `json:"expense_id"`
	Expense   ExpenseInput `json:"expense"`
}

type UpdateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ProjectID string `json:"project_id"`
	ExpenseID string `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type GetLedgerRequest struct {
	ProjectID string `json:"project_id"`
	Filter    string `json:"filter,omitempty"`
	Order     string `json:"order,omitempty"` // dateDesc | dateAsc | amountDesc | amountAsc
}

type GetLedgerResponse struct {
	Project *Project  `json:"project"`
	Entries []Expense `json:"entries"`
	Total   string    `json:"total"`
	Count   int       `json:"count"`
	Order   string    `json:"order"`
}

type StartExportRequest struct {
	ProjectID string `json:"project_id"`
	Sink      string `json:"sink"` // file | mail | client
}

type StartExportResponse struct {
	Export *ExportStatus `json:"export"`
}

type GetExportRequest struct {
	AttemptID   string `json:"attempt_id"`
	IncludeData bool   `json:"include_data,omitempty"`
}

type GetExportResponse struct {
	Export   *ExportStatus `json:"export"`
	FileName string        `json:"file_name,omitempty"`
	MimeType string        `json:"mime_type,omitempty"`
	Data     []byte        `json:"data,omitempty"`
}

// CompleteExportRequest reports the outcome of a client-side sink.
type CompleteExportRequest struct {
	AttemptID   string `json:"attempt_id"`
	Outcome     string `json:"outcome"` // saved | sent | cancelled | failed
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
}

type CompleteExportResponse struct {
	Export *ExportStatus `json:"export"`
}
