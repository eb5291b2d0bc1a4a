package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/csvcodec"
	"github.com/mmynk/ducats/internal/metrics"
	"github.com/mmynk/ducats/internal/models"
)

// Snapshotter returns a point-in-time copy of a project and its ledger.
type Snapshotter interface {
	Snapshot(ctx context.Context, projectID string) (*models.Project, error)
}

// Attempt is one run of an export from trigger to terminal state.
type Attempt struct {
	id        string
	projectID string
	kind      SinkKind
	fileName  string
	started   time.Time

	mu      sync.Mutex
	state   State
	payload *Payload
	result  Result
	done    chan struct{}
}

// ID returns the attempt id.
func (a *Attempt) ID() string { return a.id }

// ProjectID returns the exported project's id.
func (a *Attempt) ProjectID() string { return a.projectID }

// Kind returns the sink kind the attempt was started with.
func (a *Attempt) Kind() SinkKind { return a.kind }

// State returns the attempt's current state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Done is closed once the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result returns the terminal result. It is the zero Result until Done is closed.
func (a *Attempt) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Payload returns the prepared payload while the attempt awaits its sink.
func (a *Attempt) Payload() (Payload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.payload == nil {
		return Payload{}, false
	}
	return *a.payload, true
}

// Wait blocks until the attempt finishes or ctx is done.
func (a *Attempt) Wait(ctx context.Context) (Result, error) {
	select {
	case <-a.done:
		return a.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Orchestrator drives export attempts. It is safe for concurrent use.
type Orchestrator struct {
	snapshots  Snapshotter
	encoder    *csvcodec.Encoder
	recipients []string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	observer   func(Transition)
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	active map[string]*Attempt // by project id
	last   map[string]*Attempt // most recent finished attempt, by project id
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEncoder sets the CSV encoder. The default writes dates in UTC.
func WithEncoder(enc *csvcodec.Encoder) Option {
	return func(o *Orchestrator) { o.encoder = enc }
}

// WithRecipients sets the default mail recipients placed on every payload.
func WithRecipients(to []string) Option {
	return func(o *Orchestrator) { o.recipients = append([]string(nil), to...) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics records attempts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithObserver registers fn to be called on every state transition. fn runs
// synchronously and must not call back into the Orchestrator.
func WithObserver(fn func(Transition)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// NewOrchestrator creates an Orchestrator reading ledgers from snapshots.
func NewOrchestrator(snapshots Snapshotter, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		snapshots: snapshots,
		encoder:   csvcodec.NewEncoder(time.UTC),
		logger:    slog.Default(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		active:    make(map[string]*Attempt),
		last:      make(map[string]*Attempt),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins an export of projectID through sink.
//
// The ledger is snapshotted and encoded before sink is activated. Start
// returns once the sink holds the payload; the attempt then completes in the
// background when the sink reports. A project with an attempt already in
// flight is rejected with a ConcurrentExport error and the running attempt is
// left untouched.
func (o *Orchestrator) Start(ctx context.Context, projectID string, sink Sink) (*Attempt, error) {
	if sink == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "no export sink selected")
	}

	a, err := o.reserve(projectID, sink.Kind())
	if err != nil {
		return nil, err
	}
	o.metrics.ExportStarted(string(a.kind))
	o.logger.Info("Export started", "attempt_id", a.id, "project_id", projectID, "sink", a.kind)

	o.setState(a, Preparing)

	project, err := o.snapshots.Snapshot(ctx, projectID)
	if err != nil {
		return nil, o.abort(a, err)
	}
	data, err := o.encoder.Marshal(project.Expenses)
	if err != nil {
		return nil, o.abort(a, err)
	}
	o.metrics.PayloadEncoded(len(data))

	payload := Payload{
		AttemptID:   a.id,
		ProjectID:   projectID,
		ProjectName: project.Name,
		FileName:    csvcodec.FileName(project.Name),
		MimeType:    csvcodec.MimeType,
		Subject:     fmt.Sprintf("Expenses: %s", project.Name),
		Body:        fmt.Sprintf("Attached is the expense ledger for %s.", project.Name),
		Recipients:  append([]string(nil), o.recipients...),
		Data:        data,
	}
	a.mu.Lock()
	a.fileName = payload.FileName
	a.payload = &payload
	a.mu.Unlock()

	// Bytes are in place; only now may the sink see them.
	o.setState(a, AwaitingSink)

	ch, err := activate(o.ctx, sink, payload)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeUnknown {
			err = apperrors.Wrap(apperrors.CodeSink, "failed to activate export sink", err)
		}
		return nil, o.abort(a, err)
	}

	go o.await(a, ch)
	return a, nil
}

// State returns the export state of projectID.
func (o *Orchestrator) State(projectID string) State {
	o.mu.Lock()
	a, ok := o.active[projectID]
	o.mu.Unlock()
	if !ok {
		return Idle
	}
	return a.State()
}

// Active returns the attempt in flight for projectID, if any.
func (o *Orchestrator) Active(projectID string) (*Attempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.active[projectID]
	return a, ok
}

// Lookup finds an attempt by id among those in flight and the most recent
// finished attempt of each project.
func (o *Orchestrator) Lookup(attemptID string) (*Attempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, set := range []map[string]*Attempt{o.active, o.last} {
		for _, a := range set {
			if a.id == attemptID {
				return a, true
			}
		}
	}
	return nil, false
}

// Close cancels every attempt still awaiting its sink and waits for them to
// finish. Attempts cancelled this way complete as cancelled. Start fails
// after Close.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) reserve(projectID string, kind SinkKind) (*Attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, apperrors.New(apperrors.CodeSink, "export orchestrator is closed")
	}
	if cur, ok := o.active[projectID]; ok {
		o.metrics.ExportRejected()
		o.logger.Warn("Export rejected", "project_id", projectID, "active_attempt_id", cur.id)
		return nil, apperrors.ConcurrentExport(projectID, cur.id)
	}

	a := &Attempt{
		id:        uuid.New().String(),
		projectID: projectID,
		kind:      kind,
		started:   o.now(),
		state:     Idle,
		done:      make(chan struct{}),
	}
	o.active[projectID] = a
	o.wg.Add(1)
	return a, nil
}

// activate hands the payload to sink, turning a panic into a sink error.
func activate(ctx context.Context, sink Sink, p Payload) (ch <-chan Completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			ch = nil
			err = apperrors.New(apperrors.CodeSink, fmt.Sprintf("export sink panicked: %v", r))
		}
	}()

	ch, err = sink.Activate(ctx, p)
	if err == nil && ch == nil {
		err = apperrors.New(apperrors.CodeSink, "export sink returned no completion channel")
	}
	return ch, err
}

func (o *Orchestrator) await(a *Attempt, ch <-chan Completion) {
	var c Completion
	select {
	case got, ok := <-ch:
		if !ok {
			got = FailedWith(fmt.Errorf("export sink closed without reporting"))
		}
		c = got
	case <-o.ctx.Done():
		c = Cancelled()
	}
	o.complete(a, c)
}

// complete maps a sink completion to the attempt's terminal result.
func (o *Orchestrator) complete(a *Attempt, c Completion) {
	res := Result{Completion: c, State: Completed}
	switch c.Outcome {
	case OutcomeSaved:
		res.Message = fmt.Sprintf("Saved %s to %s", a.fileName, c.Destination)
	case OutcomeSent:
		res.Message = fmt.Sprintf("Sent %s by email", a.fileName)
	case OutcomeCancelled:
		res.Message = "Export cancelled"
	default:
		cause := c.Err
		if cause == nil {
			cause = fmt.Errorf("unexpected sink outcome %q", c.Outcome)
		}
		res.State = Failed
		res.Err = apperrors.Wrap(apperrors.CodeSink, "export sink failed", cause)
		res.Message = fmt.Sprintf("Export failed: %v", cause)
	}
	o.finish(a, res)
}

// abort fails an attempt before its sink reported and returns err.
func (o *Orchestrator) abort(a *Attempt, err error) error {
	o.finish(a, Result{
		State:      Failed,
		Completion: FailedWith(err),
		Err:        err,
		Message:    fmt.Sprintf("Export failed: %v", err),
	})
	return err
}

func (o *Orchestrator) finish(a *Attempt, res Result) {
	res.Duration = o.now().Sub(a.started)
	o.setState(a, res.State)

	a.mu.Lock()
	a.result = res
	a.payload = nil
	a.mu.Unlock()

	o.mu.Lock()
	if o.active[a.projectID] == a {
		delete(o.active, a.projectID)
	}
	o.last[a.projectID] = a
	o.mu.Unlock()
	o.notify(Transition{AttemptID: a.id, ProjectID: a.projectID, From: res.State, To: Idle})

	outcome := string(res.Completion.Outcome)
	o.metrics.ExportFinished(string(a.kind), outcome, res.Duration.Seconds())
	if res.State == Failed {
		o.logger.Warn("Export failed", "attempt_id", a.id, "project_id", a.projectID, "error", res.Err)
	} else {
		o.logger.Info("Export finished", "attempt_id", a.id, "project_id", a.projectID, "outcome", outcome)
	}

	close(a.done)
	o.wg.Done()
}

func (o *Orchestrator) setState(a *Attempt, to State) {
	a.mu.Lock()
	from := a.state
	a.state = to
	a.mu.Unlock()
	o.notify(Transition{AttemptID: a.id, ProjectID: a.projectID, From: from, To: to})
}

func (o *Orchestrator) notify(t Transition) {
	o.logger.Debug("Export state changed", "attempt_id", t.AttemptID, "project_id", t.ProjectID,
		"from", t.From.String(), "to", t.To.String())
	if o.observer != nil {
		o.observer(t)
	}
}
