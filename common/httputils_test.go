package common_test

import (
	"context"
	"docflow/common"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("HttpInvokeJson", func() {
	var (
		server      *httptest.Server
		status      int
		lastBody    string
		lastHeaders http.Header
	)
	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			lastBody = string(b)
			lastHeaders = r.Header
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
	})
	AfterEach(func() {
		server.Close()
	})

	It("should post json body and return response body", func() {
		body, err := common.HttpInvokeJson(context.Background(), http.MethodPost, server.URL,
			http.Header{"X-Trace": []string{"abc"}}, `{"a":1}`)
		Expect(err).To(BeNil())
		Expect(body).To(Equal(`{"ok":true}`))
		Expect(lastBody).To(Equal(`{"a":1}`))
		Expect(lastHeaders.Get("Content-Type")).To(Equal("application/json;charset=UTF-8"))
		Expect(lastHeaders.Get("X-Trace")).To(Equal("abc"))
	})

	It("should return ErrHttpInvoke when status is not success", func() {
		status = http.StatusBadGateway
		body, err := common.HttpInvokeJson(context.Background(), http.MethodPost, server.URL, nil, `{}`)
		Expect(body).To(BeEmpty())
		var invokeErr *common.ErrHttpInvoke
		Expect(errors.As(err, &invokeErr)).To(BeTrue())
		Expect(invokeErr.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(invokeErr.RespBody).To(Equal(`{"ok":true}`))
		Expect(invokeErr.Method).To(Equal(http.MethodPost))
	})
})
