package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// LedgerServiceName is the fully-qualified name of the ledger service.
const LedgerServiceName = "ducats.v1.LedgerService"

// Procedure paths.
const (
	CreateProjectProcedure  = "/" + LedgerServiceName + "/CreateProject"
	GetProjectProcedure     = "/" + LedgerServiceName + "/GetProject"
	ListProjectsProcedure   = "/" + LedgerServiceName + "/ListProjects"
	UpdateProjectProcedure  = "/" + LedgerServiceName + "/UpdateProject"
	DeleteProjectProcedure  = "/" + LedgerServiceName + "/DeleteProject"
	AddExpenseProcedure     = "/" + LedgerServiceName + "/AddExpense"
	UpdateExpenseProcedure  = "/" + LedgerServiceName + "/UpdateExpense"
	DeleteExpenseProcedure  = "/" + LedgerServiceName + "/DeleteExpense"
	GetLedgerProcedure      = "/" + LedgerServiceName + "/GetLedger"
	StartExportProcedure    = "/" + LedgerServiceName + "/StartExport"
	GetExportProcedure      = "/" + LedgerServiceName + "/GetExport"
	CompleteExportProcedure = "/" + LedgerServiceName + "/CompleteExport"
)

// jsonCodec carries plain Go structs with encoding/json under the "json"
// codec name, replacing Connect's protobuf-only JSON codec.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// LedgerServiceHandler is implemented by the ledger service.
type LedgerServiceHandler interface {
	CreateProject(context.Context, *connect.Request[CreateProjectRequest]) (*connect.Response[CreateProjectResponse], error)
	GetProject(context.Context, *connect.Request[GetProjectRequest]) (*connect.Response[GetProjectResponse], error)
	ListProjects(context.Context, *connect.Request[ListProjectsRequest]) (*connect.Response[ListProjectsResponse], error)
	UpdateProject(context.Context, *connect.Request[UpdateProjectRequest]) (*connect.Response[UpdateProjectResponse], error)
	DeleteProject(context.Context, *connect.Request[DeleteProjectRequest]) (*connect.Response[DeleteProjectResponse], error)
	AddExpense(context.Context, *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	GetLedger(context.Context, *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error)
	StartExport(context.Context, *connect.Request[StartExportRequest]) (*connect.Response[StartExportResponse], error)
	GetExport(context.Context, *connect.Request[GetExportRequest]) (*connect.Response[GetExportResponse], error)
	CompleteExport(context.Context, *connect.Request[CompleteExportRequest]) (*connect.Response[CompleteExportResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler serving every procedure of
// svc. It returns the path to mount the handler on.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateProjectProcedure, connect.NewUnaryHandler(CreateProjectProcedure, svc.CreateProject, opts...))
	mux.Handle(GetProjectProcedure, connect.NewUnaryHandler(GetProjectProcedure, svc.GetProject, opts...))
	mux.Handle(ListProjectsProcedure, connect.NewUnaryHandler(ListProjectsProcedure, svc.ListProjects, opts...))
	mux.Handle(UpdateProjectProcedure, connect.NewUnaryHandler(UpdateProjectProcedure, svc.UpdateProject, opts...))
	mux.Handle(DeleteProjectProcedure, connect.NewUnaryHandler(DeleteProjectProcedure, svc.DeleteProject, opts...))
	mux.Handle(AddExpenseProcedure, connect.NewUnaryHandler(AddExpenseProcedure, svc.AddExpense, opts...))
	mux.Handle(UpdateExpenseProcedure, connect.NewUnaryHandler(UpdateExpenseProcedure, svc.UpdateExpense, opts...))
	mux.Handle(DeleteExpenseProcedure, connect.NewUnaryHandler(DeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(GetLedgerProcedure, connect.NewUnaryHandler(GetLedgerProcedure, svc.GetLedger, opts...))
	mux.Handle(StartExportProcedure, connect.NewUnaryHandler(StartExportProcedure, svc.StartExport, opts...))
	mux.Handle(GetExportProcedure, connect.NewUnaryHandler(GetExportProcedure, svc.GetExport, opts...))
	mux.Handle(CompleteExportProcedure, connect.NewUnaryHandler(CompleteExportProcedure, svc.CompleteExport, opts...))

	return "/" + LedgerServiceName + "/", mux
}

// LedgerServiceClient calls the ledger service.
type LedgerServiceClient struct {
	createProject  *connect.Client[CreateProjectRequest, CreateProjectResponse]
	getProject     *connect.Client[GetProjectRequest, GetProjectResponse]
	listProjects   *connect.Client[ListProjectsRequest, ListProjectsResponse]
	updateProject  *connect.Client[UpdateProjectRequest, UpdateProjectResponse]
	deleteProject  *connect.Client[DeleteProjectRequest, DeleteProjectResponse]
	addExpense     *connect.Client[AddExpenseRequest, AddExpenseResponse]
	updateExpense  *connect.Client[UpdateExpenseRequest, UpdateExpenseResponse]
	deleteExpense  *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	getLedger      *connect.Client[GetLedgerRequest, GetLedgerResponse]
	startExport    *connect.Client[StartExportRequest, StartExportResponse]
	getExport      *connect.Client[GetExportRequest, GetExportResponse]
	completeExport *connect.Client[CompleteExportRequest, CompleteExportResponse]
}

// NewLedgerServiceClient creates a client for the service at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &LedgerServiceClient{
		createProject:  connect.NewClient[CreateProjectRequest, CreateProjectResponse](httpClient, baseURL+CreateProjectProcedure, opts...),
		getProject:     connect.NewClient[GetProjectRequest, GetProjectResponse](httpClient, baseURL+GetProjectProcedure, opts...),
		listProjects:   connect.NewClient[ListProjectsRequest, ListProjectsResponse](httpClient, baseURL+ListProjectsProcedure, opts...),
		updateProject:  connect.NewClient[UpdateProjectRequest, UpdateProjectResponse](httpClient, baseURL+UpdateProjectProcedure, opts...),
		deleteProject:  connect.NewClient[DeleteProjectRequest, DeleteProjectResponse](httpClient, baseURL+DeleteProjectProcedure, opts...),
		addExpense:     connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+AddExpenseProcedure, opts...),
		updateExpense:  connect.NewClient[UpdateExpenseRequest, UpdateExpenseResponse](httpClient, baseURL+UpdateExpenseProcedure, opts...),
		deleteExpense:  connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+DeleteExpenseProcedure, opts...),
		getLedger:      connect.NewClient[GetLedgerRequest, GetLedgerResponse](httpClient, baseURL+GetLedgerProcedure, opts...),
		startExport:    connect.NewClient[StartExportRequest, StartExportResponse](httpClient, baseURL+StartExportProcedure, opts...),
		getExport:      connect.NewClient[GetExportRequest, GetExportResponse](httpClient, baseURL+GetExportProcedure, opts...),
		completeExport: connect.NewClient[CompleteExportRequest, CompleteExportResponse](httpClient, baseURL+CompleteExportProcedure, opts...),
	}
}

func (c *LedgerServiceClient) CreateProject(ctx context.Context, req *connect.Request[CreateProjectRequest]) (*connect.Response[CreateProjectResponse], error) {
	return c.createProject.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetProject(ctx context.Context, req *connect.Request[GetProjectRequest]) (*connect.Response[GetProjectResponse], error) {
	return c.getProject.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListProjects(ctx context.Context, req *connect.Request[ListProjectsRequest]) (*connect.Response[ListProjectsResponse], error) {
	return c.listProjects.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) UpdateProject(ctx context.Context, req *connect.Request[UpdateProjectRequest]) (*connect.Response[UpdateProjectResponse], error) {
	return c.updateProject.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DeleteProject(ctx context.Context, req *connect.Request[DeleteProjectRequest]) (*connect.Response[DeleteProjectResponse], error) {
	return c.deleteProject.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetLedger(ctx context.Context, req *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error) {
	return c.getLedger.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) StartExport(ctx context.Context, req *connect.Request[StartExportRequest]) (*connect.Response[StartExportResponse], error) {
	return c.startExport.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetExport(ctx context.Context, req *connect.Request[GetExportRequest]) (*connect.Response[GetExportResponse], error) {
	return c.getExport.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CompleteExport(ctx context.Context, req *connect.Request[CompleteExportRequest]) (*connect.Response[CompleteExportResponse], error) {
	return c.completeExport.CallUnary(ctx, req)
}
