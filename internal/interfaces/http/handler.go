package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"candlearchive/internal/application/service/pipeline"
)

const runsBasePath = "/api/v1/pipeline/runs"

var errInvalidRunID = errors.New("invalid run id")

// Handler exposes the pipeline over HTTP: starting runs and inspecting
// their outcomes. It intentionally serves no candle query endpoints.
type Handler struct {
	router *gin.Engine
	runner *pipeline.Runner
	period int64
}

func NewHandler(runner *pipeline.Runner, period int64) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router: router,
		runner: runner,
		period: period,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/healthz", h.health)

	runs := h.router.Group(runsBasePath)
	{
		runs.POST("", h.startRun)
		runs.GET("", h.listRuns)
		runs.GET("/:id", h.getRun)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startRunPayload struct {
	FirstYear int `json:"first_year" binding:"required"`
	LastYear  int `json:"last_year" binding:"required"`
}

func (h *Handler) startRun(c *gin.Context) {
	var payload startRunPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	units, err := pipeline.YearUnits(payload.FirstYear, payload.LastYear, h.period, time.Now())
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	ids, err := h.runner.Start(units)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			writeError(c, http.StatusConflict, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_ids": ids})
}

func (h *Handler) listRuns(c *gin.Context) {
	outcomes := h.runner.Outcomes()
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			writeError(c, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		if limit < len(outcomes) {
			outcomes = outcomes[:limit]
		}
	}
	c.JSON(http.StatusOK, gin.H{"runs": outcomes})
}

func (h *Handler) getRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errInvalidRunID)
		return
	}
	outcome, err := h.runner.Outcome(id)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunNotFound) {
			writeError(c, http.StatusNotFound, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
