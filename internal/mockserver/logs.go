package mockserver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/parallax-connect/internal/pkg/response"
	"github.com/lk2023060901/parallax-connect/internal/pkg/validator"
	"go.uber.org/zap"
)

const logFilePrefix = "mobile_"

type logUploadRequest struct {
	DeviceID   string `json:"device_id" binding:"required,min=1,max=100"`
	DeviceName string `json:"device_name" binding:"max=100"`
	Logs       string `json:"logs" binding:"required,min=1"`
}

func (s *Server) uploadLogs(c *gin.Context) {
	var req logUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 422, err.Error())
		return
	}
	if len(req.Logs) > maxLogPayloadBytes {
		response.TooLarge(c, "Log payload too large (max 600KB)")
		return
	}
	if len([]rune(req.Logs)) > maxLogChars {
		response.Error(c, 422, fmt.Sprintf("logs must be at most %d characters", maxLogChars))
		return
	}

	log := s.logger.WithContext(c.Request.Context())
	dir := s.logDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("failed to create log dir", zap.Error(err))
		response.InternalError(c, "Failed to save logs: "+err.Error())
		return
	}
	s.pruneLogs(dir)

	now := s.now()
	filename := fmt.Sprintf("%s%s_%s.log", logFilePrefix, validator.SafeFileComponent(req.DeviceID), now.Format("2006-01-02_15-04-05"))

	var b strings.Builder
	b.WriteString("=== Mobile Logs ===\n")
	fmt.Fprintf(&b, "Device ID: %s\n", req.DeviceID)
	if req.DeviceName != "" {
		fmt.Fprintf(&b, "Device Name: %s\n", req.DeviceName)
	}
	fmt.Fprintf(&b, "Received: %s\n", now.Format(time.RFC3339))
	b.WriteString(strings.Repeat("=", 40) + "\n\n")
	b.WriteString(req.Logs)

	if err := os.WriteFile(filepath.Join(dir, filename), []byte(b.String()), 0o644); err != nil {
		log.Error("failed to save logs", zap.String("device_id", req.DeviceID), zap.Error(err))
		response.InternalError(c, "Failed to save logs: "+err.Error())
		return
	}

	log.Info("received device logs", zap.String("device_id", req.DeviceID), zap.String("filename", filename))
	response.OK(c, gin.H{
		"success":  true,
		"message":  "Logs uploaded successfully",
		"filename": filename,
	})
}

func (s *Server) logDir() string {
	if s.config.LogDir == "" {
		return "applogs"
	}
	return s.config.LogDir
}

// pruneLogs keeps the newest MaxLogs uploads. Failures are logged and
// never block an upload.
func (s *Server) pruneLogs(dir string) {
	keep := s.config.MaxLogs
	if keep <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*.log"))
	if err != nil || len(matches) <= keep {
		return
	}

	type entry struct {
		path  string
		mtime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, mtime: fi.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.After(entries[j].mtime) })

	for _, e := range entries[min(keep, len(entries)):] {
		if err := os.Remove(e.path); err != nil {
			s.logger.Warn("failed to prune log", zap.String("path", e.path), zap.Error(err))
		}
	}
}
