// Package server exposes the denoiser over a small REST API.
package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mrinlm/internal/logging"
	"mrinlm/internal/models"
	"mrinlm/pkg/config"
	"mrinlm/pkg/reconstruction"
	"mrinlm/pkg/similarity"
)

// Server serves denoising requests with parameters defaulting to a
// configuration.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	engine *gin.Engine
}

// New creates the server and its routes.
func New(cfg *config.Config, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logging.Component(logger, "server"),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	api := s.engine.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/denoise", s.postDenoise)
		}
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("listening")
	return s.engine.Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// DenoiseParams override the server configuration for one request. Unset
// fields keep the configured value.
type DenoiseParams struct {
	Metric            string   `json:"metric"`
	PatchRadius       []int    `json:"patchRadius"`
	SearchRadius      []int    `json:"searchRadius"`
	LocalStatsRadius  []int    `json:"localStatsRadius"`
	SmoothingFactor   *float64 `json:"smoothingFactor"`
	SmoothingVariance string   `json:"smoothingVariance"`

	// negative thresholds disable the pre-filter
	MeanThreshold       *float64 `json:"meanThreshold"`
	VarianceThreshold   *float64 `json:"varianceThreshold"`
	Epsilon             *float64 `json:"epsilon"`
	UseRicianNoiseModel *bool    `json:"useRicianNoiseModel"`

	// TargetIndex and TargetSize select the output region
	TargetIndex []int `json:"targetIndex"`
	TargetSize  []int `json:"targetSize"`
}

// DenoiseRequest carries an image in row-major order, axis 0 fastest.
// Channels holds optional co-registered images of the same size that take
// part in patch comparison.
type DenoiseRequest struct {
	Size     []int          `json:"size" binding:"required,min=1"`
	Data     []float64      `json:"data" binding:"required"`
	Channels [][]float64    `json:"channels"`
	Params   *DenoiseParams `json:"params"`
}

// DenoiseResponse is the denoised target region.
type DenoiseResponse struct {
	Size  []int                   `json:"size"`
	Index []int                   `json:"index"`
	Data  []float64               `json:"data"`
	Stats reconstruction.RunStats `json:"stats"`
}

func (s *Server) postDenoise(c *gin.Context) {
	if limit := s.cfg.Server.MaxBodyBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	var req DenoiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if limit := s.cfg.Server.MaxPixels; limit > 0 && req.pixels(limit) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("request exceeds %d pixels over all channels", limit),
		})
		return
	}

	channels, err := req.images()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := s.params(req.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r := reconstruction.NewReconstructor(&params)
	r.SetLogger(s.logger)
	out, err := r.Run(c.Request.Context(), channels...)
	switch {
	case err == nil:
	case reconstruction.IsConfigError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, c.Request.Context().Err()):
		s.logger.Warn().Err(err).Msg("request cancelled")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	default:
		s.logger.Error().Err(err).Msg("denoising failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	index := make([]int, len(out.Size))
	if params.TargetRegion != nil {
		index = params.TargetRegion.Index
	}
	c.JSON(http.StatusOK, DenoiseResponse{
		Size:  out.Size,
		Index: index,
		Data:  out.Data,
		Stats: r.GetStats(),
	})
}

// pixels returns the number of pixels over all channels, stopping once the
// count passes limit.
func (req *DenoiseRequest) pixels(limit int) int {
	perChannel := 1
	for _, n := range req.Size {
		if n <= 0 {
			return 0
		}
		perChannel *= n
		if perChannel > limit {
			return perChannel
		}
	}
	channels := 1 + len(req.Channels)
	if perChannel > limit/channels {
		return limit + 1
	}
	return perChannel * channels
}

func (req *DenoiseRequest) images() ([]*models.Image, error) {
	primary, err := models.NewImageFromData(req.Data, req.Size...)
	if err != nil {
		return nil, err
	}
	channels := []*models.Image{primary}
	for i, data := range req.Channels {
		ch, err := models.NewImageFromData(data, req.Size...)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i+1, err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func (s *Server) params(overrides *DenoiseParams) (reconstruction.Params, error) {
	params, err := s.cfg.Params()
	if err != nil || overrides == nil {
		return params, err
	}

	if overrides.Metric != "" {
		if params.Metric, err = similarity.ParseMetric(overrides.Metric); err != nil {
			return params, err
		}
	}
	if overrides.PatchRadius != nil {
		params.PatchRadius = overrides.PatchRadius
	}
	if overrides.SearchRadius != nil {
		params.SearchRadius = overrides.SearchRadius
	}
	if overrides.LocalStatsRadius != nil {
		params.LocalStatsRadius = overrides.LocalStatsRadius
	}
	if overrides.SmoothingFactor != nil {
		params.SmoothingFactor = *overrides.SmoothingFactor
	}
	if overrides.SmoothingVariance != "" {
		variance, auto, err := config.ParseVariance(overrides.SmoothingVariance)
		if err != nil {
			return params, err
		}
		params.SmoothingVariance, params.EstimateNoise = variance, auto
	}
	if overrides.MeanThreshold != nil {
		params.MeanThreshold = threshold(*overrides.MeanThreshold)
	}
	if overrides.VarianceThreshold != nil {
		params.VarianceThreshold = threshold(*overrides.VarianceThreshold)
	}
	if overrides.Epsilon != nil {
		params.Epsilon = *overrides.Epsilon
	}
	if overrides.UseRicianNoiseModel != nil {
		params.UseRicianNoiseModel = *overrides.UseRicianNoiseModel
	}
	if overrides.TargetIndex != nil || overrides.TargetSize != nil {
		if len(overrides.TargetIndex) != len(overrides.TargetSize) {
			return params, fmt.Errorf("targetIndex and targetSize must have the same length")
		}
		region := models.NewRegion(overrides.TargetIndex, overrides.TargetSize)
		params.TargetRegion = &region
	}
	return params, nil
}

func threshold(v float64) float64 {
	if v < 0 {
		return math.Inf(1)
	}
	return v
}
