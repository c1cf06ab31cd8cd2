package controllers

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-receiving/api/middleware"
	"github.com/angelmondragon/packfinderz-receiving/api/responses"
	"github.com/angelmondragon/packfinderz-receiving/api/validators"
	"github.com/angelmondragon/packfinderz-receiving/internal/receipts"
	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
)

const (
	paramPurchaseOrderID = "purchaseOrderId"
	paramWorkflow        = "workflow"
	paramSessionID       = "sessionId"
)

type previewRequest struct {
	Draft []receipts.EntryEdit `json:"draft" validate:"dive"`
	Edit  receipts.EntryEdit   `json:"edit"`
}

type saveRequest struct {
	Name  string               `json:"name" validate:"required"`
	Draft []receipts.EntryEdit `json:"draft" validate:"dive"`
}

// ReceivingWorkspace returns the saved sessions, the unsaved Today session and any
// reconciliation anomalies for one purchase order and workflow.
func ReceivingWorkspace(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipts service unavailable"))
			return
		}
		input, err := workspaceInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		workspace, err := svc.Workspace(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, workspace)
	}
}

// ReceivingPreview validates one cell edit against the draft without saving anything. A
// rejected edit is a normal outcome and comes back inside the result.
func ReceivingPreview(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipts service unavailable"))
			return
		}
		input, err := workspaceInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req previewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Preview(r.Context(), receipts.PreviewInput{
			WorkspaceInput: input,
			Draft:          req.Draft,
			Edit:           req.Edit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ReceivingSave re-validates the submitted draft and records it as a named session.
func ReceivingSave(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipts service unavailable"))
			return
		}
		input, err := workspaceInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req saveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithReferenceID(ctx, input.PurchaseOrderID.String())
			ctx = logg.WithWorkflow(ctx, input.Workflow.String())
		}
		result, err := svc.Save(ctx, receipts.SaveInput{
			WorkspaceInput: input,
			Name:           validators.SanitizeName(req.Name),
			Draft:          req.Draft,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ReceivingDelete removes a saved session and returns the recomputed workspace.
func ReceivingDelete(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipts service unavailable"))
			return
		}
		input, err := workspaceInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := validators.ParseUUIDParam(r, paramSessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithReferenceID(ctx, input.PurchaseOrderID.String())
			ctx = logg.WithSessionID(ctx, sessionID.String())
		}
		workspace, err := svc.Delete(ctx, receipts.DeleteInput{
			WorkspaceInput: input,
			SessionID:      sessionID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, workspace)
	}
}

func workspaceInput(r *http.Request) (receipts.WorkspaceInput, error) {
	orderID, err := validators.ParseUUIDParam(r, paramPurchaseOrderID)
	if err != nil {
		return receipts.WorkspaceInput{}, err
	}
	workflow, err := validators.ParseWorkflowParam(r, paramWorkflow)
	if err != nil {
		return receipts.WorkspaceInput{}, err
	}
	return receipts.WorkspaceInput{
		PurchaseOrderID: orderID,
		Workflow:        workflow,
		RequestID:       middleware.RequestIDFromContext(r.Context()),
	}, nil
}
