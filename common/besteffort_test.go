package common_test

import (
	"docflow/common"
	"errors"

	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("BestEffort", func() {
	It("should report success when the side effect succeed", func() {
		invoked := false
		r := common.BestEffort("notify", logrus.Fields{"documentId": 1}, func() error {
			invoked = true
			return nil
		})
		Expect(invoked).To(BeTrue())
		Expect(r).To(Equal(common.SideEffectResult{Name: "notify", Success: true}))
	})

	It("should swallow the error of the side effect", func() {
		r := common.BestEffort("notify", nil, func() error {
			return errors.New("smtp down")
		})
		Expect(r).To(Equal(common.SideEffectResult{Name: "notify", Success: false, Message: "smtp down"}))
	})

	It("should swallow the panic of the side effect", func() {
		r := common.BestEffort("audit", nil, func() error {
			panic("boom")
		})
		Expect(r.Success).To(BeFalse())
		Expect(r.Name).To(Equal("audit"))
		Expect(r.Message).To(Equal("panic: boom"))
	})
})
