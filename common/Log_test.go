package common_test

import (
	"bytes"
	"encoding/json"

	"docflow/common"

	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ConfigureLogging", func() {
	logger := logrus.StandardLogger()

	AfterEach(func() {
		Expect(common.ConfigureLogging("", "info", "text")).To(BeNil())
	})

	It("should write json entries with the service name", func() {
		Expect(common.ConfigureLogging("docflow-test", "debug", "JSON")).To(BeNil())
		Expect(logger.GetLevel()).To(Equal(logrus.DebugLevel))

		buf := &bytes.Buffer{}
		logger.Out = buf
		logrus.WithField("documentId", 77).Debug("moved")

		entry := map[string]interface{}{}
		Expect(json.Unmarshal(buf.Bytes(), &entry)).To(BeNil())
		Expect(entry["serviceName"]).To(Equal("docflow-test"))
		Expect(entry["msg"]).To(Equal("moved"))
		Expect(entry["documentId"]).To(Equal(float64(77)))
	})

	It("should default the service name", func() {
		Expect(common.ConfigureLogging("", "", "text")).To(BeNil())

		buf := &bytes.Buffer{}
		logger.Out = buf
		logrus.Info("started")
		Expect(buf.String()).To(ContainSubstring("serviceName=docflow"))
	})

	It("should refuse unknown levels", func() {
		Expect(common.ConfigureLogging("", "loud", "text")).ToNot(BeNil())
	})
})
