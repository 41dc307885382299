package state_test

import (
	"docflow/domain"
	"docflow/domain/state"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("StateMachine", func() {
	Describe("ParseActionKind", func() {
		It("should parse action types case-insensitively", func() {
			Expect(state.ParseActionKind("approve")).To(Equal(state.Approve))
			Expect(state.ParseActionKind(" APPROVE ")).To(Equal(state.Approve))
			Expect(state.ParseActionKind("Reject")).To(Equal(state.Reject))
			Expect(state.ParseActionKind("eScAlAtE")).To(Equal(state.Escalate))
			Expect(state.ParseActionKind("submit")).To(Equal(state.Generic))
			Expect(state.ParseActionKind("")).To(Equal(state.Generic))
		})
	})

	Describe("Derive", func() {
		DescribeTable("terminal actions",
			func(kind state.ActionKind, docStatus domain.DocumentStatus, wfStatus domain.WorkflowStatus, legal bool) {
				o := state.Derive(state.Move{Kind: kind, ActionName: "Final", Terminal: true})
				Expect(o.DocumentStatus).To(Equal(docStatus))
				Expect(o.WorkflowStatus).To(Equal(wfStatus))
				Expect(o.Legal).To(Equal(legal))
			},
			Entry("approve publishes and completes", state.Approve, domain.DocumentStatusPublished, domain.WorkflowStatusCompleted, true),
			Entry("reject rejects and cancels", state.Reject, domain.DocumentStatusRejected, domain.WorkflowStatusCancelled, true),
			Entry("escalate is illegal", state.Escalate, domain.DocumentStatusInProgress, domain.WorkflowStatusInProgress, false),
			Entry("generic is illegal", state.Generic, domain.DocumentStatusInProgress, domain.WorkflowStatusInProgress, false),
		)

		It("should never advance on reject, whatever the target stage", func() {
			o := state.Derive(state.Move{Kind: state.Reject, ActionName: "Return for review", ToOriginatingStage: true})
			Expect(o).To(Equal(state.Outcome{DocumentStatus: domain.DocumentStatusRejected,
				WorkflowStatus: domain.WorkflowStatusCancelled, Advance: false, Legal: true}))
		})

		It("should mark document as draft when returning to the originating stage", func() {
			o := state.Derive(state.Move{Kind: state.Generic, ActionName: "Send back for review", ToOriginatingStage: true})
			Expect(o.DocumentStatus).To(Equal(domain.DocumentStatusDraft))
			Expect(o.WorkflowStatus).To(Equal(domain.WorkflowStatusInProgress))
			Expect(o.Advance).To(BeTrue())

			o = state.Derive(state.Move{Kind: state.Approve, ActionName: "Approve", ToOriginatingStage: true})
			Expect(o.DocumentStatus).To(Equal(domain.DocumentStatusDraft))
		})

		It("should mark document under review when action name mentions review", func() {
			Expect(state.Derive(state.Move{Kind: state.Generic, ActionName: "Submit for Review"}).DocumentStatus).
				To(Equal(domain.DocumentStatusUnderReview))
			Expect(state.Derive(state.Move{Kind: state.Approve, ActionName: "REVIEWED"}).DocumentStatus).
				To(Equal(domain.DocumentStatusUnderReview))
			Expect(state.Derive(state.Move{Kind: state.Escalate, ActionName: "Escalate"}).DocumentStatus).
				To(Equal(domain.DocumentStatusInProgress))
		})

		It("should publish on terminal approval even if action name mentions review", func() {
			o := state.Derive(state.Move{Kind: state.Approve, ActionName: "Final review", Terminal: true})
			Expect(o.DocumentStatus).To(Equal(domain.DocumentStatusPublished))
			Expect(o.WorkflowStatus).To(Equal(domain.WorkflowStatusCompleted))
		})
	})

	Describe("IsLegalTerminal", func() {
		It("should only accept approve and reject", func() {
			Expect(state.IsLegalTerminal(state.Approve)).To(BeTrue())
			Expect(state.IsLegalTerminal(state.Reject)).To(BeTrue())
			Expect(state.IsLegalTerminal(state.Escalate)).To(BeFalse())
			Expect(state.IsLegalTerminal(state.Generic)).To(BeFalse())
		})
	})
})
