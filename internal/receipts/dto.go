package receipts

import (
	"github.com/angelmondragon/packfinderz-receiving/internal/reconciliation"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/google/uuid"
)

// WorkspaceInput identifies the sessions of one purchase order and workflow.
type WorkspaceInput struct {
	PurchaseOrderID uuid.UUID
	Workflow        enums.Workflow
	RequestID       string
}

// EntryEdit is one cell edit of the unsaved session as sent by clients.
type EntryEdit struct {
	EntryID string `json:"entry_id" validate:"required"`
	Field   string `json:"field" validate:"required,oneof=goodQuantity badQuantity samples_checked samples_ok"`
	Value   int    `json:"value"`
}

// PreviewInput replays Draft onto a fresh unsaved session and then applies Edit.
type PreviewInput struct {
	WorkspaceInput
	Draft []EntryEdit
	Edit  EntryEdit
}

// SaveInput replays Draft and saves the result under Name.
type SaveInput struct {
	WorkspaceInput
	Name  string
	Draft []EntryEdit
}

// DeleteInput removes one saved session.
type DeleteInput struct {
	WorkspaceInput
	SessionID uuid.UUID
}

// Workspace is everything a client needs to render the sessions of a workflow.
type Workspace struct {
	PurchaseOrderID  uuid.UUID                         `json:"purchase_order_id"`
	Workflow         enums.Workflow                    `json:"workflow"`
	Status           enums.PurchaseOrderStatus         `json:"status"`
	Sessions         []reconciliation.Session          `json:"sessions"`
	Anomalies        []reconciliation.IntegrityAnomaly `json:"anomalies"`
	ValidationErrors []reconciliation.ValidationError  `json:"validation_errors"`
}

// PreviewResult carries the outcome of one edit and the recomputed unsaved session.
type PreviewResult struct {
	Result           reconciliation.UpdateResult      `json:"result"`
	ValidationErrors []reconciliation.ValidationError `json:"validation_errors"`
}

// SaveResult carries the committed session and the reloaded workspace.
type SaveResult struct {
	Session   reconciliation.Session `json:"session"`
	Workspace *Workspace             `json:"workspace"`
}
