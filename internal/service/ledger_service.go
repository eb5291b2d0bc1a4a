// Package service implements ducats.v1.LedgerService on top of the ledger
// engine and the export orchestrator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/assets"
	"github.com/mmynk/ducats/internal/export"
	"github.com/mmynk/ducats/internal/ledger"
	"github.com/mmynk/ducats/internal/models"
	"github.com/mmynk/ducats/internal/view"
	"github.com/mmynk/ducats/pkg/api"
)

// Sink names accepted by StartExport.
const (
	SinkFile   = "file"
	SinkMail   = "mail"
	SinkClient = "client"
)

// Sinks are the export destinations the server offers. A nil sink is not
// available.
type Sinks struct {
	File   export.Sink         // server-side directory
	Mail   export.Sink         // SMTP
	Client *export.PendingSink // delivered by the calling client
}

// exportTimeout bounds how long CompleteExport waits for the attempt to settle.
const exportTimeout = 5 * time.Second

// LedgerService implements api.LedgerServiceHandler.
type LedgerService struct {
	engine  *ledger.Engine
	exports *export.Orchestrator
	sinks   Sinks
	logger  *slog.Logger
}

var _ api.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a LedgerService.
func NewLedgerService(engine *ledger.Engine, exports *export.Orchestrator, sinks Sinks, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{engine: engine, exports: exports, sinks: sinks, logger: logger}
}

// CreateProject creates a new project.
func (s *LedgerService) CreateProject(ctx context.Context, req *connect.Request[api.CreateProjectRequest]) (*connect.Response[api.CreateProjectResponse], error) {
	s.logger.Info("CreateProject request received", "name", req.Msg.Name)

	project, err := s.engine.CreateProject(ctx, req.Msg.Name, req.Msg.Details)
	if err != nil {
		return nil, s.fail("CreateProject", err)
	}

	return connect.NewResponse(&api.CreateProjectResponse{
		Project: toProject(project),
	}), nil
}

// GetProject retrieves a project with its ledger.
func (s *LedgerService) GetProject(ctx context.Context, req *connect.Request[api.GetProjectRequest]) (*connect.Response[api.GetProjectResponse], error) {
	s.logger.Info("GetProject request received", "project_id", req.Msg.ProjectID)

	project, err := s.engine.GetProject(ctx, req.Msg.ProjectID)
	if err != nil {
		return nil, s.fail("GetProject", err)
	}

	p := toProject(project)
	p.Expenses = toExpenses(project.Expenses, req.Msg.IncludeReceipts)
	return connect.NewResponse(&api.GetProjectResponse{Project: p}), nil
}

// ListProjects lists projects, optionally only active or completed ones.
func (s *LedgerService) ListProjects(ctx context.Context, req *connect.Request[api.ListProjectsRequest]) (*connect.Response[api.ListProjectsResponse], error) {
	s.logger.Info("ListProjects request received", "filter", req.Msg.Filter)

	filter, err := models.ParseProjectFilter(req.Msg.Filter)
	if err != nil {
		return nil, s.fail("ListProjects", apperrors.Validation("filter", req.Msg.Filter, err))
	}
	projects, err := s.engine.ListProjects(ctx, filter)
	if err != nil {
		return nil, s.fail("ListProjects", err)
	}

	out := make([]*api.Project, len(projects))
	for i, p := range projects {
		out[i] = toProject(p)
	}

	s.logger.Info("ListProjects successful", "count", len(out))
	return connect.NewResponse(&api.ListProjectsResponse{Projects: out}), nil
}

// UpdateProject renames, re-describes, completes or reopens a project.
func (s *LedgerService) UpdateProject(ctx context.Context, req *connect.Request[api.UpdateProjectRequest]) (*connect.Response[api.UpdateProjectResponse], error) {
	s.logger.Info("UpdateProject request received", "project_id", req.Msg.ProjectID)

	project, err := s.engine.UpdateProject(ctx, req.Msg.ProjectID, ledger.ProjectUpdate{
		Name:      req.Msg.Name,
		Details:   req.Msg.Details,
		Completed: req.Msg.Completed,
	})
	if err != nil {
		return nil, s.fail("UpdateProject", err)
	}

	return connect.NewResponse(&api.UpdateProjectResponse{
		Project: toProject(project),
	}), nil
}

// DeleteProject deletes a project and its ledger.
func (s *LedgerService) DeleteProject(ctx context.Context, req *connect.Request[api.DeleteProjectRequest]) (*connect.Response[api.DeleteProjectResponse], error) {
	s.logger.Info("DeleteProject request received", "project_id", req.Msg.ProjectID)

	if err := s.engine.DeleteProject(ctx, req.Msg.ProjectID); err != nil {
		return nil, s.fail("DeleteProject", err)
	}
	return connect.NewResponse(&api.DeleteProjectResponse{}), nil
}

// AddExpense appends an expense to a project's ledger.
func (s *LedgerService) AddExpense(ctx context.Context, req *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error) {
	s.logger.Info("AddExpense request received",
		"project_id", req.Msg.ProjectID,
		"amount", req.Msg.Expense.Amount,
	)

	draft := ledger.NewDraft()
	applyInput(draft, req.Msg.Expense)

	expense, err := s.engine.AddExpense(ctx, req.Msg.ProjectID, draft)
	if err != nil {
		return nil, s.fail("AddExpense", err)
	}
	return connect.NewResponse(&api.AddExpenseResponse{
		Expense: toExpense(expense, false),
	}), nil
}

// UpdateExpense replaces an expense's fields.
func (s *LedgerService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	s.logger.Info("UpdateExpense request received",
		"project_id", req.Msg.ProjectID,
		"expense_id", req.Msg.ExpenseID,
	)

	expense, err := s.engine.EditExpense(ctx, req.Msg.ProjectID, req.Msg.ExpenseID, func(d *ledger.Draft) {
		applyInput(d, req.Msg.Expense)
	})
	if err != nil {
		return nil, s.fail("UpdateExpense", err)
	}
	return connect.NewResponse(&api.UpdateExpenseResponse{
		Expense: toExpense(expense, false),
	}), nil
}

// DeleteExpense deletes an expense by id.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	s.logger.Info("DeleteExpense request received",
		"project_id", req.Msg.ProjectID,
		"expense_id", req.Msg.ExpenseID,
	)

	if err := s.engine.DeleteExpense(ctx, req.Msg.ProjectID, req.Msg.ExpenseID); err != nil {
		return nil, s.fail("DeleteExpense", err)
	}
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// GetLedger returns a project's ledger filtered by description and sorted.
// The total and count always cover the whole ledger.
func (s *LedgerService) GetLedger(ctx context.Context, req *connect.Request[api.GetLedgerRequest]) (*connect.Response[api.GetLedgerResponse], error) {
	s.logger.Info("GetLedger request received",
		"project_id", req.Msg.ProjectID,
		"filter", req.Msg.Filter,
		"order", req.Msg.Order,
	)

	order, err := view.ParseSortOrder(req.Msg.Order)
	if err != nil {
		return nil, s.fail("GetLedger", apperrors.Validation("order", req.Msg.Order, err))
	}
	project, l, err := s.engine.Ledger(ctx, req.Msg.ProjectID, req.Msg.Filter, order)
	if err != nil {
		return nil, s.fail("GetLedger", err)
	}

	return connect.NewResponse(&api.GetLedgerResponse{
		Project: toProject(project),
		Entries: toExpenses(l.Entries, false),
		Total:   l.Total.StringFixed(2),
		Count:   l.Count,
		Order:   string(l.Order),
	}), nil
}

// StartExport starts a CSV export of a project through the named sink.
func (s *LedgerService) StartExport(ctx context.Context, req *connect.Request[api.StartExportRequest]) (*connect.Response[api.StartExportResponse], error) {
	s.logger.Info("StartExport request received",
		"project_id", req.Msg.ProjectID,
		"sink", req.Msg.Sink,
	)

	sink, err := s.sink(req.Msg.Sink)
	if err != nil {
		return nil, s.fail("StartExport", err)
	}
	attempt, err := s.exports.Start(ctx, req.Msg.ProjectID, sink)
	if err != nil {
		return nil, s.fail("StartExport", err)
	}

	return connect.NewResponse(&api.StartExportResponse{
		Export: toExportStatus(attempt),
	}), nil
}

// GetExport reports an export attempt and, for client sinks, its payload.
func (s *LedgerService) GetExport(ctx context.Context, req *connect.Request[api.GetExportRequest]) (*connect.Response[api.GetExportResponse], error) {
	s.logger.Info("GetExport request received", "attempt_id", req.Msg.AttemptID)

	attempt, ok := s.exports.Lookup(req.Msg.AttemptID)
	if !ok {
		return nil, s.fail("GetExport", apperrors.NotFound("export", req.Msg.AttemptID))
	}

	resp := &api.GetExportResponse{Export: toExportStatus(attempt)}
	if payload, ok := attempt.Payload(); ok {
		resp.FileName = payload.FileName
		resp.MimeType = payload.MimeType
		if req.Msg.IncludeData {
			resp.Data = payload.Data
		}
	}
	return connect.NewResponse(resp), nil
}

// CompleteExport delivers a client sink's completion signal.
func (s *LedgerService) CompleteExport(ctx context.Context, req *connect.Request[api.CompleteExportRequest]) (*connect.Response[api.CompleteExportResponse], error) {
	s.logger.Info("CompleteExport request received",
		"attempt_id", req.Msg.AttemptID,
		"outcome", req.Msg.Outcome,
	)

	if s.sinks.Client == nil {
		return nil, s.fail("CompleteExport", apperrors.NotFound("pending export", req.Msg.AttemptID))
	}
	completion, err := toCompletion(req.Msg)
	if err != nil {
		return nil, s.fail("CompleteExport", err)
	}
	attempt, ok := s.exports.Lookup(req.Msg.AttemptID)
	if !ok {
		return nil, s.fail("CompleteExport", apperrors.NotFound("export", req.Msg.AttemptID))
	}
	if err := s.sinks.Client.Resolve(req.Msg.AttemptID, completion); err != nil {
		return nil, s.fail("CompleteExport", err)
	}

	// Report the terminal state rather than whatever is current mid-transition.
	waitCtx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	if _, err := attempt.Wait(waitCtx); err != nil {
		return nil, s.fail("CompleteExport", err)
	}
	return connect.NewResponse(&api.CompleteExportResponse{
		Export: toExportStatus(attempt),
	}), nil
}

func (s *LedgerService) sink(name string) (export.Sink, error) {
	var sink export.Sink
	switch name {
	case SinkFile:
		sink = s.sinks.File
	case SinkMail:
		sink = s.sinks.Mail
	case SinkClient:
		if s.sinks.Client != nil {
			sink = s.sinks.Client
		}
	default:
		return nil, apperrors.Validation("sink", name, fmt.Errorf("expected %s, %s or %s", SinkFile, SinkMail, SinkClient))
	}
	if sink == nil {
		return nil, apperrors.Validation("sink", name, errors.New("sink is not configured"))
	}
	return sink, nil
}

// fail logs err and converts it for the transport.
func (s *LedgerService) fail(op string, err error) error {
	if apperrors.GetCode(err) == apperrors.CodeUnknown {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Warn(op+" failed", "code", apperrors.GetCode(err), "error", err)
	}
	return apperrors.ToConnect(err)
}

func applyInput(d *ledger.Draft, in api.ExpenseInput) {
	d.Amount = in.Amount
	if !in.Date.IsZero() {
		d.Date = in.Date
	}
	d.Description = in.Description
	d.WhereMade = in.WhereMade
	d.WhatPurchased = in.WhatPurchased
	switch {
	case len(in.ReceiptImage) > 0:
		d.SetReceiptImage(in.ReceiptImage)
	case in.ClearReceipt:
		d.ClearReceiptImage()
	}
}

func toCompletion(req *api.CompleteExportRequest) (export.Completion, error) {
	switch export.Outcome(req.Outcome) {
	case export.OutcomeSaved:
		return export.Saved(req.Destination), nil
	case export.OutcomeSent:
		return export.Sent(), nil
	case export.OutcomeCancelled:
		return export.Cancelled(), nil
	case export.OutcomeFailed:
		msg := req.Error
		if msg == "" {
			msg = "client reported failure"
		}
		return export.FailedWith(errors.New(msg)), nil
	default:
		return export.Completion{}, apperrors.Validation("outcome", req.Outcome, nil)
	}
}

func toProject(p *models.Project) *api.Project {
	return &api.Project{
		ID:           p.ID,
		Name:         p.Name,
		Details:      p.Details,
		CreatedAt:    p.CreatedAt,
		Completed:    p.Completed,
		ExpenseCount: len(p.Expenses),
		Total:        view.Total(p.Expenses).StringFixed(2),
	}
}

func toExpenses(expenses []models.Expense, withReceipts bool) []api.Expense {
	out := make([]api.Expense, len(expenses))
	for i := range expenses {
		out[i] = *toExpense(&expenses[i], withReceipts)
	}
	return out
}

func toExpense(e *models.Expense, withReceipt bool) *api.Expense {
	out := &api.Expense{
		ID:            e.ID,
		ProjectID:     e.ProjectID,
		Amount:        e.Amount.String(),
		Date:          e.Date.UTC(),
		Description:   e.Description,
		WhereMade:     e.WhereMade,
		WhatPurchased: e.WhatPurchased,
		HasReceipt:    e.HasReceipt(),
	}
	if out.HasReceipt {
		out.ReceiptDigest = assets.Digest(e.ReceiptImage)
		if withReceipt {
			out.ReceiptImage = e.ReceiptImage
		}
	}
	return out
}

func toExportStatus(a *export.Attempt) *api.ExportStatus {
	status := &api.ExportStatus{
		AttemptID: a.ID(),
		ProjectID: a.ProjectID(),
		Sink:      string(a.Kind()),
		State:     a.State().String(),
	}
	select {
	case <-a.Done():
		res := a.Result()
		status.Outcome = string(res.Completion.Outcome)
		status.Destination = res.Completion.Destination
		status.Message = res.Message
		if res.Err != nil {
			status.Error = res.Err.Error()
		}
	default:
	}
	return status
}
