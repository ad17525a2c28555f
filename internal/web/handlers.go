package web

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/image/draw"

	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/health"
	"github.com/vzahanych/barcode-scanner/internal/scanner"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

// handleHealth runs every health check. An unhealthy report is served as 503.
func (s *Server) handleHealth(c *gin.Context) {
	report, ok := s.healthReport(c)
	if !ok {
		return
	}

	statusCode := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, report)
}

// handleLiveness answers as long as the process serves requests
func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// handleReadiness is ready unless a check is unhealthy
func (s *Server) handleReadiness(c *gin.Context) {
	report, ok := s.healthReport(c)
	if !ok {
		return
	}

	ready := report.Status != health.StatusUnhealthy
	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"status":    report.Status,
		"timestamp": report.Timestamp,
		"ready":     ready,
	})
}

func (s *Server) healthReport(c *gin.Context) (health.Report, bool) {
	if s.health == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Health checks not available",
		})
		return health.Report{}, false
	}
	return s.health.Check(c.Request.Context()), true
}

// handleStatus handles the system status endpoint
func (s *Server) handleStatus(c *gin.Context) {
	uptime := time.Since(s.startTime)
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"version":        s.version,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// handleTelemetry takes a fresh metrics sample
func (s *Server) handleTelemetry(c *gin.Context) {
	if s.telemetry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Telemetry collector not available",
		})
		return
	}

	metrics, err := s.telemetry.Collect(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to collect telemetry: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) requireScanner(c *gin.Context) bool {
	if s.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Scanner not available",
		})
		return false
	}
	return true
}

// handleActivate starts a session. Its outcome arrives on /api/scan/events
// and /api/scan/result.
func (s *Server) handleActivate(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}

	id, err := s.scanner.Activate(nil, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scanner.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": id,
	})
}

func (s *Server) handleDeactivate(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}
	s.scanner.Deactivate()
	c.JSON(http.StatusOK, s.scanner.Snapshot())
}

func (s *Server) handleScanStatus(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}
	c.JSON(http.StatusOK, s.scanner.Snapshot())
}

func (s *Server) handleToggleTorch(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}

	engaged, err := s.scanner.ToggleTorch(c.Request.Context())
	if errors.Is(err, scanner.ErrTorchUnavailable) {
		c.JSON(http.StatusConflict, gin.H{
			"error":           err.Error(),
			"torch_available": false,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   err.Error(),
			"engaged": engaged,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"torch_available": true,
		"engaged":         engaged,
	})
}

func (s *Server) handleLastResult(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}

	result, ok := s.scanner.LastResult()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No session has finished yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleEvents streams scan and config events as server-sent events
func (s *Server) handleEvents(c *gin.Context) {
	bus := s.GetEventBus()
	if bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Event bus not available",
		})
		return
	}

	events := bus.SubscribeAll()
	defer bus.Unsubscribe(events)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"at": time.Now().Format(time.RFC3339Nano)})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				if !streamable(ev.Type) {
					continue
				}
				c.SSEvent(string(ev.Type), ev.Data)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		}
	})
}

func streamable(t service.EventType) bool {
	return strings.HasPrefix(string(t), "scan.") || t == service.EventTypeConfigReloaded
}

// handlePreviewFrame returns the latest live frame as a JPEG
func (s *Server) handlePreviewFrame(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}

	img, ok := s.scanner.Preview()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No live frame"})
		return
	}

	frame, err := s.encodeJPEG(img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to encode frame: %v", err),
		})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// handlePreviewStream serves the live stream as MJPEG until the session ends
// or the client goes away
func (s *Server) handlePreviewStream(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}
	if _, ok := s.scanner.Preview(); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No live frame"})
		return
	}

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=--frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Pragma", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Streaming not supported",
		})
		return
	}

	ticker := time.NewTicker(s.previewInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ticker.C:
			img, ok := s.scanner.Preview()
			if !ok {
				return false
			}
			frame, err := s.encodeJPEG(img)
			if err != nil {
				s.LogDebug("Preview frame dropped", "error", err)
				return true
			}
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprintf(w, "\r\n")
			flusher.Flush()
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.scalePreview(img), &jpeg.Options{Quality: s.previewQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scalePreview shrinks frames wider than previewMaxWidth, keeping the aspect
// ratio. Decoding always sees the native frame.
func (s *Server) scalePreview(img image.Image) image.Image {
	b := img.Bounds()
	if s.previewMaxWidth <= 0 || b.Dx() <= s.previewMaxWidth {
		return img
	}

	height := b.Dy() * s.previewMaxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, s.previewMaxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// handleGetConfig returns the running configuration, or one section of it
func (s *Server) handleGetConfig(c *gin.Context) {
	if s.configSvc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Configuration service not available",
		})
		return
	}

	cfg := redacted(s.configSvc.Get())
	section := c.Query("section")
	if section == "" {
		c.JSON(http.StatusOK, gin.H{"config": cfg})
		return
	}

	sectionConfig := getConfigSection(cfg, section)
	if sectionConfig == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid section: %s", section),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"section": section,
		"config":  sectionConfig,
	})
}

// handleReloadConfig re-reads the configuration file. Watchers apply the new
// values to the next session.
func (s *Server) handleReloadConfig(c *gin.Context) {
	if s.configSvc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Configuration service not available",
		})
		return
	}

	if err := s.configSvc.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	s.PublishEvent(service.EventTypeConfigReloaded, map[string]interface{}{
		"source": "api",
	})
	c.JSON(http.StatusOK, gin.H{"config": redacted(s.configSvc.Get())})
}

// redacted returns a copy of cfg without secrets
func redacted(cfg *config.Config) *config.Config {
	out := *cfg
	if out.MQTT.Password != "" {
		out.MQTT.Password = "********"
	}
	return &out
}

func getConfigSection(cfg *config.Config, section string) interface{} {
	switch strings.ToLower(section) {
	case "camera":
		return cfg.Camera
	case "decode":
		return cfg.Decode
	case "sampler":
		return cfg.Sampler
	case "web":
		return cfg.Web
	case "log":
		return cfg.Log
	case "telemetry":
		return cfg.Telemetry
	case "mqtt":
		return cfg.MQTT
	}
	return nil
}
