package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"

	"github.com/miradorstack/covers-forecast/internal/utils"
)

const (
	defaultChartDays = 7
	maxChartDays     = 31
)

// NewRouter builds the JSON HTTP surface over service.
func NewRouter(service ForecastService, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{service: service, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", h.health)
	v1 := r.Group("/v1")
	{
		v1.POST("/forecasts", h.forecast)
		v1.POST("/forecasts/batch", h.forecastBatch)
		v1.GET("/forecasts/chart", h.chart)
		v1.GET("/context/:date", h.context)
		v1.GET("/staffing", h.staffing)
	}
	return r
}

type httpHandler struct {
	service ForecastService
	logger  *slog.Logger
}

func (h *httpHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_trained": h.service.ModelTrained()})
}

func (h *httpHandler) forecast(c *gin.Context) {
	var body ForecastRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	prediction, err := h.service.ForecastOne(c.Request.Context(), body.LocationID, body.ServiceDate, body.ServicePeriod)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (h *httpHandler) forecastBatch(c *gin.Context) {
	var body BatchRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	outcomes, err := h.service.ForecastBatch(c.Request.Context(), body.LocationID, body.Dates, body.ServicePeriod)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBatchResponse(outcomes))
}

func (h *httpHandler) chart(c *gin.Context) {
	start, err := utils.ParseISODate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be an ISO date"})
		return
	}
	days := defaultChartDays
	if raw := c.Query("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 || days > maxChartDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("days must be between 1 and %d", maxChartDays)})
			return
		}
	}
	dates := make([]string, days)
	for i := range dates {
		dates[i] = utils.FormatDate(utils.AddDays(start, i))
	}

	locationID := c.Query("location_id")
	period := c.DefaultQuery("service_period", "dinner")
	outcomes, err := h.service.ForecastBatch(c.Request.Context(), locationID, dates, period)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := RenderChart(c.Writer, fmt.Sprintf("Covers forecast: %s (%s)", locationID, period), outcomes); err != nil {
		h.logger.Error("render chart", slog.Any("error", err))
	}
}

func (h *httpHandler) context(c *gin.Context) {
	snapshot, err := h.service.Context(c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *httpHandler) staffing(c *gin.Context) {
	covers, err := strconv.Atoi(c.Query("covers"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "covers must be an integer"})
		return
	}
	plan, err := h.service.Staffing(c.Query("location_id"), covers)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *httpHandler) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case StatusCode(err) == codes.InvalidArgument:
		code = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		code = 499
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("op", utils.OpOf(err)), slog.Any("error", err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}
