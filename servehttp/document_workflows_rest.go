package servehttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"docflow/bizerror"
	"docflow/domain"
	"docflow/domain/flow"
	"docflow/indices"
	"docflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	PathDocumentWorkflows = "/v1/document-workflows"

	defaultActivitiesSize = 100
	maxActivitiesSize     = 1000
)

// ActivitySearcher looks up the indexed activities of a document
type ActivitySearcher interface {
	SearchActivities(ctx context.Context, documentId types.ID, documentType string, size int) ([]indices.Activity, error)
}

// ActionTaking is the body of an action request, the document and the action come from the path
type ActionTaking struct {
	Comments     string `json:"comments"`
	FeedbackType string `json:"feedbackType" validate:"max=64"`
}

// Permission is the answer of the authorization probe
type Permission struct {
	UserID  types.ID `json:"userId"`
	Allowed bool     `json:"allowed"`
}

func RegisterDocumentWorkflowHandler(r *gin.Engine, engine flow.EngineTraits, searcher ActivitySearcher, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathDocumentWorkflows, middleWares...)

	handler := &documentWorkflowHandler{
		validator: validator.New(),
		engine:    engine,
		searcher:  searcher,
	}

	g.POST("", handler.handleStartWorkflow)
	g.GET(":documentType/:documentId", handler.handleDetailWorkflow)
	g.GET(":documentType/:documentId/history", handler.handleQueryHistory)
	g.GET(":documentType/:documentId/activities", handler.handleQueryActivities)
	g.GET(":documentType/:documentId/actions", handler.handleAvailableActions)
	g.POST(":documentType/:documentId/actions/:actionId", handler.handleProcessAction)
	g.POST(":documentType/:documentId/actions/:actionId/validation", handler.handleValidateAction)
	g.GET(":documentType/:documentId/actions/:actionId/permission", handler.handlePermission)
}

type documentWorkflowHandler struct {
	validator *validator.Validate
	engine    flow.EngineTraits
	searcher  ActivitySearcher
}

func parseDocument(c *gin.Context) (types.ID, domain.DocumentType) {
	documentType := domain.DocumentType(c.Param("documentType"))
	if !documentType.Valid() {
		panic(&bizerror.ErrBadParam{Cause: errors.New("unknown document type '" + string(documentType) + "'")})
	}
	return parseID(c, "documentId"), documentType
}

func parseID(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil || id == 0 {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid " + name + " '" + c.Param(name) + "'")})
	}
	return id
}

func actor(c *gin.Context) (*session.Session, *session.Identity) {
	s := session.ExtractSessionFromGinContext(c)
	return s, &s.Identity
}

func (h *documentWorkflowHandler) handleStartWorkflow(c *gin.Context) {
	starting := domain.WorkflowStarting{}
	if err := c.ShouldBindBodyWith(&starting, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := h.validator.Struct(starting); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	s, identity := actor(c)
	wf, err := h.engine.StartWorkflow(s.Context, &starting, identity)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, wf)
}

func (h *documentWorkflowHandler) handleDetailWorkflow(c *gin.Context) {
	documentId, documentType := parseDocument(c)
	s, _ := actor(c)
	detail, err := h.engine.DetailDocumentWorkflow(s.Context, documentId, documentType)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *documentWorkflowHandler) handleQueryHistory(c *gin.Context) {
	documentId, documentType := parseDocument(c)
	s, _ := actor(c)
	histories, err := h.engine.QueryStageHistory(s.Context, documentId, documentType)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, histories)
}

func (h *documentWorkflowHandler) handleQueryActivities(c *gin.Context) {
	documentId, documentType := parseDocument(c)
	if h.searcher == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"code": "activities.not_configured", "message": "activity index is not configured"})
		return
	}
	size := defaultActivitiesSize
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxActivitiesSize {
			panic(&bizerror.ErrBadParam{Cause: errors.New("invalid size '" + raw + "'")})
		}
		size = parsed
	}
	s, _ := actor(c)
	activities, err := h.searcher.SearchActivities(s.Context, documentId, string(documentType), size)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, activities)
}

func (h *documentWorkflowHandler) handleAvailableActions(c *gin.Context) {
	documentId, documentType := parseDocument(c)
	s, identity := actor(c)
	actions, err := h.engine.AvailableActions(s.Context, documentId, documentType, identity.ID)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, actions)
}

func (h *documentWorkflowHandler) bindActionRequest(c *gin.Context) *domain.ActionRequest {
	documentId, documentType := parseDocument(c)
	actionId := parseID(c, "actionId")

	taking := ActionTaking{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindBodyWith(&taking, binding.JSON); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
	}
	if err := h.validator.Struct(taking); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return &domain.ActionRequest{DocumentID: documentId, DocumentType: documentType, ActionID: actionId,
		Comments: taking.Comments, FeedbackType: taking.FeedbackType}
}

func (h *documentWorkflowHandler) handleProcessAction(c *gin.Context) {
	req := h.bindActionRequest(c)
	s, identity := actor(c)
	outcome, err := h.engine.ProcessAction(s.Context, req, identity)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *documentWorkflowHandler) handleValidateAction(c *gin.Context) {
	req := h.bindActionRequest(c)
	s, identity := actor(c)
	result, err := h.engine.ValidateAction(s.Context, req, identity)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

// handlePermission answers for the current user, or for the user named by the userId query parameter
func (h *documentWorkflowHandler) handlePermission(c *gin.Context) {
	documentId, documentType := parseDocument(c)
	actionId := parseID(c, "actionId")
	s, identity := actor(c)

	userId := identity.ID
	if raw := c.Query("userId"); raw != "" {
		id, err := types.ParseID(raw)
		if err != nil {
			panic(&bizerror.ErrBadParam{Cause: errors.New("invalid userId '" + raw + "'")})
		}
		userId = id
	}
	allowed, err := h.engine.CanUserPerformAction(s.Context, userId, documentId, documentType, actionId)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &Permission{UserID: userId, Allowed: allowed})
}
