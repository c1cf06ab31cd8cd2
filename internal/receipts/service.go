package receipts

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/packfinderz-receiving/internal/reconciliation"
	"github.com/angelmondragon/packfinderz-receiving/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
	"github.com/angelmondragon/packfinderz-receiving/pkg/metrics"
	"github.com/google/uuid"
)

// Service exposes the receiving workflows to transport layers. Every call builds a fresh
// reconciliation.Store from persisted state, so unsaved edits travel with the request as a
// draft and are re-validated on the server.
type Service interface {
	Workspace(ctx context.Context, input WorkspaceInput) (*Workspace, error)
	Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error)
	Save(ctx context.Context, input SaveInput) (*SaveResult, error)
	Delete(ctx context.Context, input DeleteInput) (*Workspace, error)
}

// ServiceParams wires the receipts service. Outbox and Locks are optional.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Locks   LockFactory
	Metrics *metrics.ReceivingMetrics
	Logger  *logger.Logger
	Config  config.ReceivingConfig
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	locks   LockFactory
	metrics *metrics.ReceivingMetrics
	logg    *logger.Logger
	cfg     config.ReceivingConfig
	clock   func() time.Time
}

// NewService builds the receipts service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("receipts repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		locks:   params.Locks,
		metrics: params.Metrics,
		logg:    params.Logger,
		cfg:     params.Config,
		clock:   clock,
	}, nil
}

func (s *service) Workspace(ctx context.Context, input WorkspaceInput) (*Workspace, error) {
	store, _, err := s.open(ctx, input)
	if err != nil {
		return nil, err
	}
	return workspaceFrom(input, store), nil
}

func (s *service) Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error) {
	store, sc, err := s.open(ctx, input.WorkspaceInput)
	if err != nil {
		return nil, err
	}
	if _, ok := store.Today(); !ok {
		return nil, notOpenError(input.WorkspaceInput, store)
	}
	if _, err := s.replay(store, sc, input.Draft); err != nil {
		return nil, err
	}

	result, err := apply(store, sc, input.Edit)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{
		Result:           result,
		ValidationErrors: validationList(store),
	}, nil
}

func (s *service) Save(ctx context.Context, input SaveInput) (*SaveResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session name is required")
	}
	if limit := s.cfg.MaxSessionNameLength; limit > 0 && utf8.RuneCountInString(name) > limit {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "session name must be at most %d characters", limit)
	}

	release, err := s.lock(ctx, input.WorkspaceInput)
	if err != nil {
		return nil, err
	}
	defer release()

	store, sc, err := s.open(ctx, input.WorkspaceInput)
	if err != nil {
		return nil, err
	}
	if _, ok := store.Today(); !ok {
		return nil, notOpenError(input.WorkspaceInput, store)
	}
	rejection, err := s.replay(store, sc, input.Draft)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return nil, rejection.AsAPIError()
	}

	saved, err := store.SaveSession(ctx, sc, name, func(session reconciliation.Session) {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"purchase_order_id": input.PurchaseOrderID.String(),
			"workflow":          input.Workflow,
			"session_id":        session.ID,
			"entries":           len(session.Entries),
		}), "receipts.session.saved")
	})
	if err != nil {
		return nil, err
	}

	workspace, err := s.Workspace(ctx, input.WorkspaceInput)
	if err != nil {
		return nil, err
	}
	return &SaveResult{Session: *saved, Workspace: workspace}, nil
}

func (s *service) Delete(ctx context.Context, input DeleteInput) (*Workspace, error) {
	if input.SessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	release, err := s.lock(ctx, input.WorkspaceInput)
	if err != nil {
		return nil, err
	}
	defer release()

	store, sc, err := s.open(ctx, input.WorkspaceInput)
	if err != nil {
		return nil, err
	}
	if err := store.DeleteSession(ctx, sc, input.SessionID.String()); err != nil {
		return nil, err
	}
	// Deleting may move the order status, which decides whether Today exists.
	return s.Workspace(ctx, input.WorkspaceInput)
}

// open builds a store over persisted state and loads it.
func (s *service) open(ctx context.Context, input WorkspaceInput) (*reconciliation.Store, reconciliation.SessionContext, error) {
	sc := reconciliation.SessionContext{ReferenceID: input.PurchaseOrderID.String(), Workflow: input.Workflow}
	if input.PurchaseOrderID == uuid.Nil {
		return nil, sc, pkgerrors.New(pkgerrors.CodeValidation, "purchase order id required")
	}
	workflow, err := reconciliation.WorkflowFor(input.Workflow)
	if err != nil {
		return nil, sc, err
	}
	persistence, err := NewPersistence(PersistenceParams{
		Repo:      s.repo,
		Tx:        s.tx,
		Outbox:    s.outbox,
		Workflow:  workflow,
		RequestID: input.RequestID,
		Clock:     s.clock,
	})
	if err != nil {
		return nil, sc, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build persistence")
	}
	store, err := reconciliation.NewStore(reconciliation.StoreParams{
		Workflow:         workflow,
		Persistence:      persistence,
		Logger:           s.logg,
		Metrics:          s.metrics,
		TodaySessionName: s.cfg.TodaySessionName,
		Clock:            s.clock,
	})
	if err != nil {
		return nil, sc, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build session store")
	}
	if _, err := store.Load(ctx, sc); err != nil {
		return nil, sc, err
	}
	return store, sc, nil
}

// replay applies a client draft to the unsaved session in the order the edits were made.
// It returns the first rejection, if any.
func (s *service) replay(store *reconciliation.Store, sc reconciliation.SessionContext, draft []EntryEdit) (*reconciliation.ValidationError, error) {
	var first *reconciliation.ValidationError
	for _, edit := range draft {
		result, err := apply(store, sc, edit)
		if err != nil {
			return nil, err
		}
		if result.Rejection != nil && first == nil {
			first = result.Rejection
		}
	}
	return first, nil
}

// apply runs one client edit against the unsaved session. Fields that do not belong to the
// workflow are a client mistake here, not a programmer error.
func apply(store *reconciliation.Store, sc reconciliation.SessionContext, edit EntryEdit) (reconciliation.UpdateResult, error) {
	update, err := reconciliation.ParseFieldUpdate(edit.Field, edit.Value)
	if err != nil {
		return reconciliation.UpdateResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid edit")
	}
	if !slices.Contains(store.Workflow().Fields(), update.Field()) {
		return reconciliation.UpdateResult{}, pkgerrors.Newf(pkgerrors.CodeValidation, "field %s is not part of %s", edit.Field, sc.Workflow)
	}
	return store.UpdateEntry(sc, reconciliation.TodaySessionID, edit.EntryID, update)
}

func (s *service) lock(ctx context.Context, input WorkspaceInput) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	lock, err := s.locks(input.PurchaseOrderID.String(), input.Workflow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build session lock")
	}
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire session lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "another save or delete is in progress for this purchase order")
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "receipts.lock.release_failed")
		}
	}, nil
}

func workspaceFrom(input WorkspaceInput, store *reconciliation.Store) *Workspace {
	return &Workspace{
		PurchaseOrderID:  input.PurchaseOrderID,
		Workflow:         input.Workflow,
		Status:           store.Status(),
		Sessions:         store.Sessions(),
		Anomalies:        store.Anomalies(),
		ValidationErrors: validationList(store),
	}
}

func validationList(store *reconciliation.Store) []reconciliation.ValidationError {
	errs := store.ValidationErrors()
	out := make([]reconciliation.ValidationError, 0, len(errs))
	for _, rejection := range errs {
		out = append(out, rejection)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

func notOpenError(input WorkspaceInput, store *reconciliation.Store) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf(
		"purchase order is %s with nothing pending; %s sessions cannot be recorded", store.Status(), input.Workflow,
	))
}
