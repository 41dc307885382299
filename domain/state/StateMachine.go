package state

import (
	"strings"

	"docflow/domain"
)

type ActionKind uint

const (
	Generic ActionKind = iota
	Approve
	Reject
	Escalate
)

func (k ActionKind) String() string {
	switch k {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	case Escalate:
		return "escalate"
	}
	return "generic"
}

// ParseActionKind interprets the free-form action type of an action definition, case-insensitively.
func ParseActionKind(actionType string) ActionKind {
	switch strings.ToLower(strings.TrimSpace(actionType)) {
	case "approve":
		return Approve
	case "reject":
		return Reject
	case "escalate":
		return Escalate
	}
	return Generic
}

// Move describes the transition an action is about to make.
type Move struct {
	Kind       ActionKind
	ActionName string
	// Terminal is true when the action has no next stage.
	Terminal bool
	// ToOriginatingStage is true when the next stage is the originating stage (order 1).
	ToOriginatingStage bool
}

// Outcome is the derived state after a move.
type Outcome struct {
	DocumentStatus domain.DocumentStatus
	WorkflowStatus domain.WorkflowStatus
	// Advance tells whether the current stage moves to the next stage of the action.
	Advance bool
	// Legal is false for moves the transition validation refuses (terminal actions other than approve or reject).
	Legal bool
}

type outcomeKey struct {
	kind     ActionKind
	terminal bool
}

//              next stage                              no next stage
// approve      In Progress / In Progress               Published / Completed
// reject       Rejected / Cancelled (stays on stage)   Rejected / Cancelled (stays on stage)
// escalate     In Progress / In Progress               illegal
// generic      In Progress / In Progress               illegal
var outcomeTable = map[outcomeKey]Outcome{
	{Approve, false}:  {DocumentStatus: domain.DocumentStatusInProgress, WorkflowStatus: domain.WorkflowStatusInProgress, Advance: true, Legal: true},
	{Approve, true}:   {DocumentStatus: domain.DocumentStatusPublished, WorkflowStatus: domain.WorkflowStatusCompleted, Advance: true, Legal: true},
	{Reject, false}:   {DocumentStatus: domain.DocumentStatusRejected, WorkflowStatus: domain.WorkflowStatusCancelled, Advance: false, Legal: true},
	{Reject, true}:    {DocumentStatus: domain.DocumentStatusRejected, WorkflowStatus: domain.WorkflowStatusCancelled, Advance: false, Legal: true},
	{Escalate, false}: {DocumentStatus: domain.DocumentStatusInProgress, WorkflowStatus: domain.WorkflowStatusInProgress, Advance: true, Legal: true},
	{Escalate, true}:  {DocumentStatus: domain.DocumentStatusInProgress, WorkflowStatus: domain.WorkflowStatusInProgress, Advance: true, Legal: false},
	{Generic, false}:  {DocumentStatus: domain.DocumentStatusInProgress, WorkflowStatus: domain.WorkflowStatusInProgress, Advance: true, Legal: true},
	{Generic, true}:   {DocumentStatus: domain.DocumentStatusInProgress, WorkflowStatus: domain.WorkflowStatusInProgress, Advance: true, Legal: false},
}

// Derive computes document status, workflow status and stage advancement of a move.
//
// Rejection always wins: the document is Rejected, the workflow Cancelled and the stage is kept.
// Otherwise a move back to the originating stage is a return to the author and the document is a Draft again.
// A non terminal approval keeps the table result unless the action name mentions a review.
func Derive(m Move) Outcome {
	o := outcomeTable[outcomeKey{kind: m.Kind, terminal: m.Terminal}]
	if m.Kind == Reject {
		return o
	}
	if m.ToOriginatingStage && !m.Terminal {
		o.DocumentStatus = domain.DocumentStatusDraft
		return o
	}
	if o.DocumentStatus == domain.DocumentStatusInProgress && strings.Contains(strings.ToLower(m.ActionName), "review") {
		o.DocumentStatus = domain.DocumentStatusUnderReview
	}
	return o
}

// IsLegalTerminal tells whether an action kind may end a workflow.
func IsLegalTerminal(kind ActionKind) bool {
	return outcomeTable[outcomeKey{kind: kind, terminal: true}].Legal
}
