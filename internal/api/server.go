// Package api exposes the kitchen assistant as a JSON HTTP API.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cooking-ops/internal/app"
	"cooking-ops/internal/metrics"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/selection"
	"cooking-ops/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// UserHeader carries the caller's session identity.
	UserHeader      = "X-User-ID"
	requestIDHeader = "X-Request-ID"
)

// Options configure the router.
type Options struct {
	App      *app.App
	Log      *zap.Logger
	Gatherer prometheus.Gatherer
	// Webhook handles Telegram updates. The route is only mounted when set.
	Webhook http.HandlerFunc
	// DataDir is reported by the health endpoint.
	DataDir string
}

type server struct {
	app     *app.App
	log     *zap.Logger
	dataDir string
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(opts Options) *gin.Engine {
	s := &server{app: opts.App, log: opts.Log, dataDir: opts.DataDir}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	r.GET("/health", s.health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.Webhook != nil {
		r.POST("/webhook", gin.WrapF(opts.Webhook))
	}

	r.GET("/session", s.getSession)
	r.GET("/recipes", s.listRecipes)
	r.POST("/recipes/reload", s.reloadRecipes)
	r.POST("/recipes/clip", s.clipRecipe)
	r.GET("/selection", s.getSelection)
	r.POST("/selection/:id", s.toggleSelection)
	r.PUT("/resources", s.setResources)
	r.GET("/schedule", s.getSchedule)
	r.POST("/schedule", s.optimize)
	r.GET("/plan", s.getPlan)
	r.POST("/plan", s.generatePlan)
	r.GET("/plan/history", s.planHistory)
	r.PUT("/servings", s.setServings)
	r.GET("/shopping-list", s.getShoppingList)
	r.POST("/shopping-list", s.buildShoppingList)
	r.POST("/shopping-list/items/:index/toggle", s.toggleItem)
	r.DELETE("/shopping-list", s.resetShoppingList)
	r.DELETE("/shopping-list/checked", s.clearChecked)
	r.GET("/debug/log", s.debugLog)
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}
		fields := []zap.Field{
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("user", userID(c)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			s.log.Error("server error", fields...)
		case status >= http.StatusBadRequest:
			s.log.Warn("client error", fields...)
		default:
			s.log.Info("request", fields...)
		}
	}
}

func userID(c *gin.Context) string {
	if id := c.GetHeader(UserHeader); id != "" {
		return id
	}
	return app.DefaultUserID
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// abortWithError maps an error to its status code and error code.
func abortWithError(c *gin.Context, err error) {
	kind := session.KindOf(err)
	status := http.StatusInternalServerError
	code := string(kind)

	switch {
	case errors.Is(err, session.ErrBusy):
		status, code = http.StatusConflict, "BUSY"
	case errors.Is(err, app.ErrSuperseded):
		status, code = http.StatusConflict, "SUPERSEDED"
	case errors.Is(err, app.ErrClipperNotConfigured), errors.Is(err, app.ErrGhostNotConfigured):
		status, code = http.StatusNotImplemented, "NOT_CONFIGURED"
	default:
		switch kind {
		case session.KindCredentialMissing, session.KindServiceUnreachable:
			status = http.StatusServiceUnavailable
		case session.KindRequestFailed:
			status = http.StatusBadGateway
		case session.KindInvalidInput:
			status = http.StatusBadRequest
		}
	}
	c.AbortWithStatusJSON(status, errorBody{Code: code, Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Code: string(session.KindInvalidInput), Message: err.Error()})
}

func (s *server) health(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"system": metrics.GetSysHealth(s.dataDir),
	}
	stats, err := s.app.Stats(c.Request.Context())
	if err != nil {
		s.log.Warn("failed to collect stats", zap.Error(err))
	}
	body["stats"] = stats
	c.JSON(http.StatusOK, body)
}

func (s *server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Session(c.Request.Context(), userID(c)).Snapshot())
}

func (s *server) listRecipes(c *gin.Context) {
	category, err := selection.ParseCategory(c.Query("category"))
	if err != nil {
		badRequest(c, err)
		return
	}
	view, err := s.app.Recipes(c.Request.Context(), userID(c), c.Query("q"), category)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *server) reloadRecipes(c *gin.Context) {
	res, err := s.app.LoadCatalog(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.RecipeView{Recipes: res.Recipes, IsLive: res.IsLive, Error: res.Error})
}

type clipRequest struct {
	URL string `json:"url" binding:"required,url"`
}

func (s *server) clipRecipe(c *gin.Context) {
	var req clipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.app.ClipURL(c.Request.Context(), userID(c), req.URL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	body := gin.H{"recipe": res.Recipe}
	if res.Post != nil {
		body["post"] = res.Post
	}
	c.JSON(http.StatusCreated, body)
}

func (s *server) getSelection(c *gin.Context) {
	snap := s.app.Session(c.Request.Context(), userID(c)).Snapshot()
	c.JSON(http.StatusOK, gin.H{"selected": snap.Selected})
}

func (s *server) toggleSelection(c *gin.Context) {
	selected, err := s.app.ToggleSelection(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	snap := s.app.Session(c.Request.Context(), userID(c)).Snapshot()
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "isSelected": selected, "selected": snap.Selected})
}

type resourcesRequest struct {
	Cooks  int `json:"cooks" binding:"required,min=1,max=8"`
	Stoves int `json:"stoves" binding:"required,min=1,max=10"`
}

func (s *server) setResources(c *gin.Context) {
	var req resourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.app.SetResources(c.Request.Context(), userID(c), req.Cooks, req.Stoves); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *server) getSchedule(c *gin.Context) {
	snap := s.app.Session(c.Request.Context(), userID(c)).Snapshot()
	if snap.Schedule == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, snap.Schedule)
}

func (s *server) optimize(c *gin.Context) {
	schedule, err := s.app.Optimize(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (s *server) getPlan(c *gin.Context) {
	snap := s.app.Session(c.Request.Context(), userID(c)).Snapshot()
	c.JSON(http.StatusOK, gin.H{"plan": snap.Plan, "days": snap.PlanDays, "inventoryNotes": snap.InventoryNotes})
}

const maxHistory = 20

func (s *server) planHistory(c *gin.Context) {
	limit := 5
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistory {
			badRequest(c, fmt.Errorf("limit must be an integer between 1 and %d", maxHistory))
			return
		}
		limit = n
	}
	plans, err := s.app.PlanHistory(c.Request.Context(), userID(c), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if plans == nil {
		plans = []planner.StoredPlan{}
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

type planRequest struct {
	Days           int    `json:"days" binding:"omitempty,min=1,max=14"`
	InventoryNotes string `json:"inventoryNotes"`
	Force          bool   `json:"force"`
}

func (s *server) generatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user := userID(c)
	if req.Days == 0 {
		req.Days = s.app.Session(c.Request.Context(), user).Snapshot().PlanDays
	}
	plan, err := s.app.GeneratePlan(c.Request.Context(), user, req.Days, req.InventoryNotes, req.Force)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (s *server) setServings(c *gin.Context) {
	var req planner.Servings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.app.SetServings(c.Request.Context(), userID(c), req); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *server) getShoppingList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.app.ShoppingList(c.Request.Context(), userID(c))})
}

func (s *server) buildShoppingList(c *gin.Context) {
	items, err := s.app.BuildShoppingList(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *server) toggleItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, err)
		return
	}
	items, err := s.app.ToggleItem(c.Request.Context(), userID(c), index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *server) clearChecked(c *gin.Context) {
	items, err := s.app.ClearChecked(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *server) resetShoppingList(c *gin.Context) {
	if err := s.app.ResetShoppingList(c.Request.Context(), userID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) debugLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.app.Session(c.Request.Context(), userID(c)).DebugLog()})
}
