package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"docflow/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
)

func TestTracingIngress(t *testing.T) {
	RegisterTestingT(t)

	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	router := gin.New()
	router.Use(TracingIngress())
	router.GET("/v1/document-workflows/:documentType/:documentId", func(c *gin.Context) {
		Expect(opentracing.SpanFromContext(c.Request.Context())).ToNot(BeNil())
		c.Status(http.StatusOK)
	})
	router.POST("/v1/document-workflows", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	t.Run("should start a root span named after the route", func(t *testing.T) {
		tracer.Reset()

		req := httptest.NewRequest(http.MethodGet, "/v1/document-workflows/Syllabus/77", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(1))
		Expect(spans[0].OperationName).To(Equal("GET /v1/document-workflows/:documentType/:documentId"))
		Expect(spans[0].ParentID).To(BeZero())
		Expect(spans[0].Tag("http.status_code")).To(Equal(uint16(200)))
		Expect(spans[0].Tag("http.url")).To(Equal("/v1/document-workflows/Syllabus/77"))
		Expect(spans[0].Tag("error")).To(BeNil())
	})

	t.Run("should continue the trace of the caller", func(t *testing.T) {
		tracer.Reset()

		clientSpan := tracer.StartSpan("client")
		req := httptest.NewRequest(http.MethodGet, "/v1/document-workflows/Syllabus/77", nil)
		Expect(tracer.Inject(clientSpan.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))).To(BeNil())
		status, _, _ := testinfra.ExecuteRequest(req, router)
		clientSpan.Finish()
		Expect(status).To(Equal(http.StatusOK))

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(2))
		client := clientSpan.(*mocktracer.MockSpan)
		Expect(spans[0].ParentID).To(Equal(client.SpanContext.SpanID))
		Expect(spans[0].SpanContext.TraceID).To(Equal(client.SpanContext.TraceID))
	})

	t.Run("should flag server errors", func(t *testing.T) {
		tracer.Reset()

		req := httptest.NewRequest(http.MethodPost, "/v1/document-workflows", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(1))
		Expect(spans[0].OperationName).To(Equal("POST /v1/document-workflows"))
		Expect(spans[0].Tag("error")).To(Equal(true))
	})

	t.Run("should use the path of unmatched requests", func(t *testing.T) {
		tracer.Reset()

		req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(tracer.FinishedSpans()[0].OperationName).To(Equal("GET /unknown"))
	})
}
