package mockserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/parallax-connect/internal/pkg/response"
)

func (s *Server) home(c *gin.Context) {
	response.OK(c, gin.H{"status": "online", "mode": Mode, "device": "Server Node"})
}

func (s *Server) healthz(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	response.OK(c, gin.H{
		"server":    "online",
		"mode":      Mode,
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) info(c *gin.Context) {
	response.OK(c, gin.H{
		"server_version": Version,
		"mode":           Mode,
		"capabilities": gin.H{
			"vram_gb":              8,
			"vision_supported":     false,
			"document_processing":  false,
			"max_context_window":   4096,
			"multimodal_supported": false,
		},
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) models(c *gin.Context) {
	response.OK(c, gin.H{
		"models": []gin.H{{
			"id":             ModelID,
			"name":           "Mock Model",
			"context_length": 4096,
			"vram_gb":        8,
		}},
		"active":  ModelID,
		"default": ModelID,
	})
}
