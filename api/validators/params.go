package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
)

// ParseUUIDParam reads a chi URL parameter as a UUID.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter required").WithDetails(map[string]any{"field": key})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a uuid").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// ParseWorkflowParam reads a chi URL parameter as a receiving workflow.
func ParseWorkflowParam(r *http.Request, key string) (enums.Workflow, error) {
	wf, err := enums.ParseWorkflow(strings.ToLower(strings.TrimSpace(chi.URLParam(r, key))))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown workflow").WithDetails(map[string]any{"field": key})
	}
	return wf, nil
}
