package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/engine"
	apperrors "github.com/kbukum/wirekit/errors"
	"github.com/kbukum/wirekit/observability"
	"github.com/kbukum/wirekit/plan"
	"github.com/kbukum/wirekit/version"
)

// Engine is the part of *engine.Engine the server needs.
type Engine interface {
	Snapshot() (*engine.Snapshot, bool)
	Scan(ctx context.Context) (*engine.Snapshot, error)
	Resolve(ctx context.Context, req plan.Request) (*plan.Plan, error)
	Check(ctx context.Context) (*engine.Report, error)
	CheckHealth(ctx context.Context) observability.Health
}

const serviceName = "wirekit"

type handlers struct {
	engine Engine
}

func (h *handlers) register(r gin.IRouter) {
	r.GET("/health", h.health)

	v1 := r.Group("/v1")
	v1.GET("/providers", h.providers)
	v1.GET("/skipped", h.skipped)
	v1.POST("/scan", h.scan)
	v1.POST("/resolve", h.resolve)
	v1.GET("/check", h.check)
}

func (h *handlers) health(c *gin.Context) {
	sh := observability.Check(c.Request.Context(), serviceName, version.Get().Short(), h.engine)
	status := http.StatusOK
	if !sh.Serving() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, sh)
}

func (h *handlers) snapshot(c *gin.Context) (*engine.Snapshot, bool) {
	snap, ok := h.engine.Snapshot()
	if !ok {
		RespondWithError(c, apperrors.Unavailable("no scan has completed yet"))
	}
	return snap, ok
}

func (h *handlers) providers(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	typ := c.Query("type")
	out := make([]decl.Provider, 0, len(snap.Model.Providers))
	for _, p := range snap.Model.Providers {
		if typ == "" || p.Type == typ {
			out = append(out, p)
		}
	}
	RespondOKWithMeta(c, out, &Meta{Total: len(out), RunID: snap.RunID})
}

func (h *handlers) skipped(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	RespondOKWithMeta(c, snap.Skipped, &Meta{Total: len(snap.Skipped), RunID: snap.RunID})
}

func (h *handlers) scan(c *gin.Context) {
	snap, err := h.engine.Scan(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, snap)
}

func (h *handlers) resolve(c *gin.Context) {
	var req plan.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	p, err := h.engine.Resolve(c.Request.Context(), req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, p)
}

func (h *handlers) check(c *gin.Context) {
	report, err := h.engine.Check(c.Request.Context())
	if err != nil && report == nil {
		RespondWithError(c, err)
		return
	}
	if !report.OK() {
		RespondWithFailures(c, report.Failures)
		return
	}
	RespondOK(c, report)
}
