package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/plonguo/portfolio-api/internal/chat"
	"github.com/plonguo/portfolio-api/internal/commits"
	"github.com/plonguo/portfolio-api/internal/config"
	"github.com/plonguo/portfolio-api/internal/quota"
)

// Verifier is the human-verification gate. Implementations fail closed.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

type Handler struct {
	Cfg        config.Config
	ChatSvc    *chat.Service
	CommitsSvc *commits.Service
	Quota      quota.Store
	Verifier   Verifier
}

func NewHandler(cfg config.Config, chatSvc *chat.Service, commitsSvc *commits.Service, q quota.Store, v Verifier) *Handler {
	return &Handler{
		Cfg:        cfg,
		ChatSvc:    chatSvc,
		CommitsSvc: commitsSvc,
		Quota:      q,
		Verifier:   v,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}
