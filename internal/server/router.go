package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/store"
)

// Exporter renders the store as an XLSX workbook.
type Exporter interface {
	ExportXLSX(ctx context.Context, where *store.Filter) ([]byte, error)
}

// Pinger checks store connectivity for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	gateway  *gateway.Gateway
	tools    map[string]gateway.Tool
	exporter Exporter
	pinger   Pinger
	logger   *slog.Logger
}

// NewRouter builds the HTTP API. exporter and pinger may be nil.
func NewRouter(gw *gateway.Gateway, tools map[string]gateway.Tool, exporter Exporter, pinger Pinger, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HTTPHandler{gateway: gw, tools: tools, exporter: exporter, pinger: pinger, logger: logger}

	router := gin.New()
	router.Use(RequestID(logger))
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))

	router.GET("/healthz", h.health)

	v1 := router.Group("/v1")
	{
		v1.POST("/collections/:collection/find", h.find)
		v1.POST("/collections/:collection/similar", h.similar)
		v1.GET("/tools", h.listTools)
		v1.POST("/tools/:name", h.runTool)
		v1.GET("/export.xlsx", h.export)
	}
	return router
}

func (h *HTTPHandler) health(c *gin.Context) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) find(c *gin.Context) {
	var body FindBody
	if err := bindOptional(c, &body); err != nil {
		h.fail(c, err)
		return
	}
	body.Collection = c.Param("collection")
	req, err := body.request()
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := h.gateway.Find(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PageBody{Objects: objectBodies(page.Objects), Cursor: page.Cursor, HasMore: page.HasMore})
}

func (h *HTTPHandler) similar(c *gin.Context) {
	var body SimilarBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, validation("body", err))
		return
	}
	body.Collection = c.Param("collection")
	req, err := body.request()
	if err != nil {
		h.fail(c, err)
		return
	}
	hits, err := h.gateway.Similar(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PageBody{Objects: objectBodies(hits)})
}

func (h *HTTPHandler) listTools(c *gin.Context) {
	out := make([]gin.H, 0, len(h.tools))
	for _, t := range h.tools {
		out = append(out, gin.H{"name": t.Name(), "description": t.Description()})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (h *HTTPHandler) runTool(c *gin.Context) {
	var body ToolBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, validation("body", err))
		return
	}
	name := c.Param("name")
	out, err := runTool(c.Request.Context(), h.tools, name, body.Query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ToolResult{Tool: name, Output: out})
}

func (h *HTTPHandler) export(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "export is not configured"})
		return
	}
	var where *store.Filter
	if country := c.Query("country"); country != "" {
		where = store.Where("country", store.Equal, country)
	}
	data, err := h.exporter.ExportXLSX(c.Request.Context(), where)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	code := httpStatus(err)
	logger := common.LoggerFromContext(c.Request.Context(), h.logger)
	if code >= 500 {
		logger.Error("http.handler.failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, gin.H{
		"error":      err.Error(),
		"request_id": common.RequestIDFromContext(c.Request.Context()),
	})
}

// bindOptional accepts an empty body as the zero value.
func bindOptional(c *gin.Context, out any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil {
		return validation("body", err)
	}
	return nil
}

func validation(field string, err error) error {
	return common.NewValidator().Field(field, err.Error(), func(name string, value interface{}) *common.ValidationError {
		return &common.ValidationError{Field: name, Value: value, Message: "is not valid JSON for this endpoint"}
	}).Error()
}
