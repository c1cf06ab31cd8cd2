package reconciliation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
	"github.com/angelmondragon/packfinderz-receiving/pkg/metrics"
	"go.uber.org/multierr"
)

// StoreParams wires a Store.
type StoreParams struct {
	Workflow         Workflow
	Persistence      Persistence
	Logger           *logger.Logger
	Metrics          *metrics.ReceivingMetrics
	TodaySessionName string
	Clock            func() time.Time
}

// UpdateResult is returned by UpdateEntry. Entries holds every entry of the edited session
// after pending was recomputed.
type UpdateResult struct {
	Entry     Entry            `json:"entry"`
	Entries   []Entry          `json:"entries"`
	Rejection *ValidationError `json:"rejection,omitempty"`
	Clamped   bool             `json:"clamped"`
}

func (r UpdateResult) Accepted() bool {
	return r.Rejection == nil
}

// SavedCallback is invoked with a copy of a session right after it was persisted.
type SavedCallback func(Session)

// Store holds the sessions of one purchase order and workflow. It is owned by a single
// caller and is not safe for concurrent use.
type Store struct {
	workflow    Workflow
	persistence Persistence
	logg        *logger.Logger
	metrics     *metrics.ReceivingMetrics
	todayName   string
	now         func() time.Time

	referenceID string
	loaded      bool
	status      enums.PurchaseOrderStatus
	items       []TrackedItem
	sessions    []Session
	validation  map[ValidationKey]*ValidationError
	anomalies   []IntegrityAnomaly
}

// NewStore builds an empty store; call Load before editing.
func NewStore(params StoreParams) (*Store, error) {
	if params.Workflow == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if params.Persistence == nil {
		return nil, fmt.Errorf("persistence is required")
	}
	name := strings.TrimSpace(params.TodaySessionName)
	if name == "" {
		name = DefaultTodaySessionName
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		workflow:    params.Workflow,
		persistence: params.Persistence,
		logg:        params.Logger,
		metrics:     params.Metrics,
		todayName:   name,
		now:         clock,
		validation:  map[ValidationKey]*ValidationError{},
	}, nil
}

// Load replaces the store contents with the persisted sessions of the reference. Rows that
// match no baseline item fail the load with DATA_INTEGRITY.
func (s *Store) Load(ctx context.Context, sc SessionContext) ([]Session, error) {
	if err := s.checkContext(sc, false); err != nil {
		return nil, err
	}
	ctx = s.logContext(ctx, sc)

	start := time.Now()
	snapshot, err := s.persistence.LoadSessions(ctx, sc.ReferenceID)
	s.metrics.ObservePersistence(s.kind(), "load", time.Since(start), err)
	if err != nil {
		s.logError(ctx, "receiving.load.failed", err)
		return nil, persistenceError(err, "load sessions")
	}
	if snapshot == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "persistence returned no snapshot")
	}

	index := make(map[ItemKey]TrackedItem, len(snapshot.Items))
	var integrity error
	for _, item := range snapshot.Items {
		if _, dup := index[item.Key]; dup {
			integrity = multierr.Append(integrity, &DuplicateItemError{Key: item.Key})
			s.metrics.IncAnomaly(s.kind(), AnomalyDuplicateItem)
			continue
		}
		index[item.Key] = item
	}

	sessions := make([]Session, 0, len(snapshot.Sessions)+1)
	for _, stored := range snapshot.Sessions {
		session := Session{
			ID:        stored.ID,
			Name:      stored.Name,
			Timestamp: stored.Timestamp,
			IsSaved:   true,
			Entries:   make([]Entry, 0, len(stored.Rows)),
		}
		for _, row := range stored.Rows {
			item, ok := index[row.Key]
			if !ok {
				integrity = multierr.Append(integrity, &UnmatchedRowError{
					SessionID: stored.ID,
					RowID:     row.RowID,
					Key:       row.Key,
				})
				s.metrics.IncAnomaly(s.kind(), AnomalyUnmatchedRow)
				continue
			}
			session.Entries = append(session.Entries, s.workflow.Hydrate(item, row))
		}
		sessions = append(sessions, session)
	}
	if integrity != nil {
		typed := newDataIntegrityError(sc.ReferenceID, integrity)
		s.logError(ctx, "receiving.load.integrity_failed", typed)
		return nil, typed
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.Before(sessions[j].Timestamp)
	})

	opts := s.workflow.PendingOptions()
	anomalies := make([]IntegrityAnomaly, 0)
	anyPending := false
	for _, item := range snapshot.Items {
		consumed := ConsumedQuantity(sessions, item.Key, opts)
		if consumed > item.Baseline {
			anomaly := IntegrityAnomaly{
				Kind:     AnomalyOverReceipt,
				Key:      item.Key,
				Code:     item.Code,
				Baseline: item.Baseline,
				Consumed: consumed,
			}
			anomalies = append(anomalies, anomaly)
			s.metrics.IncAnomaly(s.kind(), AnomalyOverReceipt)
			s.logAnomaly(ctx, anomaly)
		}
		if CalculatePending(item.Baseline, sessions, item.Key, opts) > 0 {
			anyPending = true
		}
	}

	if s.workflow.OpenFor(snapshot.Status) && anyPending {
		today := Session{
			ID:        TodaySessionID,
			Name:      s.todayName,
			Timestamp: s.now(),
			Entries:   make([]Entry, 0, len(snapshot.Items)),
		}
		for _, item := range snapshot.Items {
			entry := newEntry(item).withDerived()
			entry.Pending = CalculatePending(item.Baseline, sessions, item.Key, opts)
			today.Entries = append(today.Entries, entry)
		}
		sessions = append(sessions, today)
	}

	s.referenceID = sc.ReferenceID
	s.loaded = true
	s.status = snapshot.Status
	s.items = append([]TrackedItem(nil), snapshot.Items...)
	s.sessions = sessions
	s.validation = map[ValidationKey]*ValidationError{}
	s.anomalies = anomalies

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"sessions": len(sessions),
			"status":   snapshot.Status,
		}), "receiving.load.ok")
	}
	return s.Sessions(), nil
}

// UpdateEntry validates and applies one edit to an unsaved session. Rule violations come back
// in UpdateResult.Rejection and leave the entry untouched; the returned error is reserved for
// unknown sessions or entries and programmer errors.
func (s *Store) UpdateEntry(sc SessionContext, sessionID, entryID string, update EntryFieldUpdate) (UpdateResult, error) {
	if err := s.checkContext(sc, true); err != nil {
		return UpdateResult{}, err
	}
	if update == nil {
		return UpdateResult{}, pkgerrors.New(pkgerrors.CodeInternal, "update is required")
	}
	sessionIdx := s.sessionIndex(sessionID)
	if sessionIdx < 0 {
		return UpdateResult{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "session %s not found", sessionID)
	}
	session := &s.sessions[sessionIdx]
	entryIdx := session.entryIndex(entryID)
	if entryIdx < 0 {
		return UpdateResult{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "entry %s not found in session %s", entryID, sessionID)
	}
	current := session.Entries[entryIdx]

	if session.IsSaved {
		rejection := &ValidationError{
			Code:      pkgerrors.CodeStateConflict,
			SessionID: sessionID,
			EntryID:   entryID,
			Field:     update.Field(),
			Value:     update.Value(),
			Message:   fmt.Sprintf("session %q is saved and cannot be edited", session.Name),
		}
		s.reject(rejection)
		return UpdateResult{Entry: current, Entries: cloneEntries(session.Entries), Rejection: rejection}, nil
	}

	outcome, err := s.workflow.Validate(current, update)
	if err != nil {
		return UpdateResult{}, err
	}
	if outcome.Rejection != nil {
		outcome.Rejection.SessionID = sessionID
		s.reject(outcome.Rejection)
		return UpdateResult{Entry: current, Entries: cloneEntries(session.Entries), Rejection: outcome.Rejection}, nil
	}

	session.Entries[entryIdx] = outcome.Entry
	delete(s.validation, ValidationKey{SessionID: sessionID, EntryID: entryID, Field: update.Field()})
	if outcome.Clamped {
		delete(s.validation, ValidationKey{SessionID: sessionID, EntryID: entryID, Field: FieldSamplesOK})
	}
	s.recomputePending(sessionIdx)

	return UpdateResult{
		Entry:   session.Entries[entryIdx],
		Entries: cloneEntries(session.Entries),
		Clamped: outcome.Clamped,
	}, nil
}

// SaveSession persists the active entries of the unsaved session under name. On failure the
// session stays unsaved and editable.
func (s *Store) SaveSession(ctx context.Context, sc SessionContext, name string, onSaved SavedCallback) (*Session, error) {
	if err := s.checkContext(sc, true); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session name is required")
	}
	idx := s.unsavedIndex()
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "there is no unsaved session to save")
	}

	active := make([]Entry, 0, len(s.sessions[idx].Entries))
	serialized := make([]SerializedEntry, 0, len(s.sessions[idx].Entries))
	for _, entry := range s.sessions[idx].Entries {
		if !s.workflow.Active(entry) {
			continue
		}
		active = append(active, entry)
		serialized = append(serialized, s.workflow.Serialize(entry))
	}
	if len(serialized) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no quantities were recorded in this session")
	}

	ctx = s.logContext(ctx, sc)
	start := time.Now()
	sessionID, err := s.persistence.SaveSession(ctx, sc.ReferenceID, name, serialized)
	s.metrics.ObservePersistence(s.kind(), "save", time.Since(start), err)
	if err != nil {
		s.logError(ctx, "receiving.save.failed", err)
		return nil, persistenceError(err, "save session")
	}
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "persistence returned an empty session id")
	}

	for i := range active {
		active[i].Pending = 0
	}
	saved := &s.sessions[idx]
	saved.ID = sessionID
	saved.Name = name
	saved.Timestamp = s.now()
	saved.IsSaved = true
	saved.Entries = active
	s.clearSessionValidation(TodaySessionID)

	s.metrics.IncSaved(s.kind())
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(s.logg.WithSessionID(ctx, sessionID), map[string]any{
			"entries": len(serialized),
			"name":    name,
		}), "receiving.session.saved")
	}

	out := saved.clone()
	if onSaved != nil {
		onSaved(out.clone())
	}
	return &out, nil
}

// DeleteSession removes a saved session, persistence first. The unsaved session's pending is
// recomputed afterwards.
func (s *Store) DeleteSession(ctx context.Context, sc SessionContext, sessionID string) error {
	if err := s.checkContext(sc, true); err != nil {
		return err
	}
	idx := s.sessionIndex(sessionID)
	if idx < 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "session %s not found", sessionID)
	}
	if !s.sessions[idx].IsSaved {
		return pkgerrors.New(pkgerrors.CodeValidation, "the unsaved session cannot be deleted")
	}

	ctx = s.logContext(ctx, sc)
	if s.logg != nil {
		ctx = s.logg.WithSessionID(ctx, sessionID)
	}
	start := time.Now()
	err := s.persistence.DeleteSession(ctx, sessionID, sc.ReferenceID)
	s.metrics.ObservePersistence(s.kind(), "delete", time.Since(start), err)
	if err != nil {
		s.logError(ctx, "receiving.delete.failed", err)
		return persistenceError(err, "delete session")
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	s.clearSessionValidation(sessionID)
	if unsaved := s.unsavedIndex(); unsaved >= 0 {
		s.recomputePending(unsaved)
	}

	s.metrics.IncDeleted(s.kind())
	if s.logg != nil {
		s.logg.Info(ctx, "receiving.session.deleted")
	}
	return nil
}

// ClearValidationError drops a stored rejection. It reports whether one existed.
func (s *Store) ClearValidationError(key ValidationKey) bool {
	if _, ok := s.validation[key]; !ok {
		return false
	}
	delete(s.validation, key)
	return true
}

// ValidationErrors returns a copy of the outstanding rejections.
func (s *Store) ValidationErrors() map[ValidationKey]ValidationError {
	out := make(map[ValidationKey]ValidationError, len(s.validation))
	for key, rejection := range s.validation {
		out[key] = *rejection
	}
	return out
}

// Sessions returns deep copies of all sessions, oldest first, the unsaved one last.
func (s *Store) Sessions() []Session {
	return cloneSessions(s.sessions)
}

// Session returns a copy of one session.
func (s *Store) Session(sessionID string) (Session, bool) {
	if idx := s.sessionIndex(sessionID); idx >= 0 {
		return s.sessions[idx].clone(), true
	}
	return Session{}, false
}

// Today returns the unsaved session when one exists.
func (s *Store) Today() (Session, bool) {
	if idx := s.unsavedIndex(); idx >= 0 {
		return s.sessions[idx].clone(), true
	}
	return Session{}, false
}

// Anomalies returns the non-fatal inconsistencies found by the last Load.
func (s *Store) Anomalies() []IntegrityAnomaly {
	return append([]IntegrityAnomaly(nil), s.anomalies...)
}

// Status returns the order status seen by the last Load.
func (s *Store) Status() enums.PurchaseOrderStatus {
	return s.status
}

// Items returns the baseline items seen by the last Load.
func (s *Store) Items() []TrackedItem {
	return append([]TrackedItem(nil), s.items...)
}

func (s *Store) Workflow() Workflow {
	return s.workflow
}

func (s *Store) checkContext(sc SessionContext, requireLoaded bool) error {
	if strings.TrimSpace(sc.ReferenceID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id is required")
	}
	if sc.Workflow != s.workflow.Kind() {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf(
			"session context workflow %q does not match store workflow %q", sc.Workflow, s.workflow.Kind(),
		))
	}
	if requireLoaded && (!s.loaded || s.referenceID != sc.ReferenceID) {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "sessions for reference %s are not loaded", sc.ReferenceID)
	}
	return nil
}

func (s *Store) recomputePending(sessionIdx int) {
	opts := s.workflow.PendingOptions()
	session := &s.sessions[sessionIdx]
	for i := range session.Entries {
		entry := &session.Entries[i]
		if session.IsSaved {
			entry.Pending = 0
			continue
		}
		entry.Pending = CalculatePending(entry.Baseline, s.sessions, entry.Key, opts)
	}
}

func (s *Store) reject(rejection *ValidationError) {
	s.validation[rejection.Key()] = rejection
	s.metrics.IncRejection(s.kind(), string(rejection.Field))
}

func (s *Store) clearSessionValidation(sessionID string) {
	for key := range s.validation {
		if key.SessionID == sessionID {
			delete(s.validation, key)
		}
	}
}

func (s *Store) sessionIndex(sessionID string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

func (s *Store) unsavedIndex() int {
	for i := range s.sessions {
		if !s.sessions[i].IsSaved {
			return i
		}
	}
	return -1
}

func (s *Store) kind() string {
	return s.workflow.Kind().String()
}

func (s *Store) logContext(ctx context.Context, sc SessionContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithReferenceID(ctx, sc.ReferenceID)
	return s.logg.WithWorkflow(ctx, sc.Workflow.String())
}

func (s *Store) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(ctx, msg, err)
}

func (s *Store) logAnomaly(ctx context.Context, anomaly IntegrityAnomaly) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithFields(ctx, map[string]any{
		"item":     anomaly.Key.String(),
		"code":     anomaly.Code,
		"baseline": anomaly.Baseline,
		"consumed": anomaly.Consumed,
	}), "receiving.load.over_receipt", nil)
}

// persistenceError keeps typed errors from the collaborator and marks anything else as a
// dependency failure.
func persistenceError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
