package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrinlm/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer() *Server {
	cfg := config.DefaultConfig()
	cfg.Server.MaxPixels = 1000
	return New(cfg, zerolog.Nop())
}

func post(t *testing.T, s *Server, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/denoise", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	newTestServer().Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestDenoiseUniformImage(t *testing.T) {
	data := make([]float64, 6*5)
	for i := range data {
		data[i] = 12
	}

	w := post(t, newTestServer(), map[string]interface{}{
		"size": []int{6, 5},
		"data": data,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DenoiseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{6, 5}, resp.Size)
	assert.Equal(t, []int{0, 0}, resp.Index)
	require.Len(t, resp.Data, 30)
	for _, v := range resp.Data {
		assert.InDelta(t, 12.0, v, 1e-9)
	}
	assert.EqualValues(t, 30, resp.Stats.Pixels)
}

func TestDenoiseWithOverrides(t *testing.T) {
	data := make([]float64, 8*8)
	for i := range data {
		data[i] = float64(i % 7)
	}

	w := post(t, newTestServer(), map[string]interface{}{
		"size": []int{8, 8},
		"data": data,
		"params": map[string]interface{}{
			"metric":            "pearson",
			"searchRadius":      []int{1},
			"smoothingVariance": "auto",
			"meanThreshold":     0,
			"varianceThreshold": 0,
			"targetIndex":       []int{2, 2},
			"targetSize":        []int{3, 4},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DenoiseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{3, 4}, resp.Size)
	assert.Equal(t, []int{2, 2}, resp.Index)
	assert.Zero(t, resp.Stats.Compared, "zero thresholds reject every candidate")
	assert.Positive(t, resp.Stats.SmoothingVariance)
}

func TestDenoiseRejectsBadRequests(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"missing size", map[string]interface{}{"data": []float64{1}}, http.StatusBadRequest},
		{"size mismatch", map[string]interface{}{"size": []int{3, 3}, "data": []float64{1, 2}}, http.StatusBadRequest},
		{"bad metric", map[string]interface{}{
			"size": []int{2, 2}, "data": []float64{1, 2, 3, 4},
			"params": map[string]interface{}{"metric": "cosine"},
		}, http.StatusBadRequest},
		{"bad variance", map[string]interface{}{
			"size": []int{2, 2}, "data": []float64{1, 2, 3, 4},
			"params": map[string]interface{}{"smoothingVariance": "loud"},
		}, http.StatusBadRequest},
		{"invalid radius", map[string]interface{}{
			"size": []int{2, 2}, "data": []float64{1, 2, 3, 4},
			"params": map[string]interface{}{"patchRadius": []int{1, 1, 1}},
		}, http.StatusBadRequest},
		{"region outside", map[string]interface{}{
			"size": []int{2, 2}, "data": []float64{1, 2, 3, 4},
			"params": map[string]interface{}{"targetIndex": []int{1, 1}, "targetSize": []int{2, 2}},
		}, http.StatusBadRequest},
		{"channel size", map[string]interface{}{
			"size": []int{2, 2}, "data": []float64{1, 2, 3, 4},
			"channels": [][]float64{{1, 2, 3}},
		}, http.StatusBadRequest},
		{"too large", map[string]interface{}{"size": []int{100, 100}, "data": []float64{1}}, http.StatusRequestEntityTooLarge},
		{"too many channels", map[string]interface{}{
			"size": []int{20, 20}, "data": make([]float64, 400),
			"channels": [][]float64{make([]float64, 400), make([]float64, 400)},
		}, http.StatusRequestEntityTooLarge},
		{"auto variance on tiny image", map[string]interface{}{
			"size": []int{2, 2}, "data": []float64{1, 2, 3, 4},
			"params": map[string]interface{}{"smoothingVariance": "auto"},
		}, http.StatusBadRequest},
		{"zero patch radius", map[string]interface{}{
			"size": []int{2, 2}, "data": []float64{1, 2, 3, 4},
			"params": map[string]interface{}{"patchRadius": []int{0}},
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, s, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDenoiseChannelsWithinPixelLimit(t *testing.T) {
	// 2 channels of 20x20 fit the 1000 pixel limit
	data := make([]float64, 400)
	for i := range data {
		data[i] = 3
	}
	w := post(t, newTestServer(), map[string]interface{}{
		"size":     []int{20, 20},
		"data":     data,
		"channels": [][]float64{data},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestDenoiseRejectsOversizedBody(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxBodyBytes = 64
	s := New(cfg, zerolog.Nop())

	w := post(t, s, map[string]interface{}{
		"size": []int{4, 4},
		"data": make([]float64, 16),
		"params": map[string]interface{}{
			"metric":            "pearson",
			"smoothingVariance": "auto",
		},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "64 bytes")
}

func TestDenoiseMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/denoise", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
