package handler

import (
	"log/slog"

	"github.com/Rohit-kaushik45/bullreckon/internal/jobqueue"
	"github.com/Rohit-kaushik45/bullreckon/internal/realtime"
	"github.com/Rohit-kaushik45/bullreckon/shared/ws"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Queue    *jobqueue.Manager
	Hub      *realtime.Hub
	Upgrader *ws.Upgrader
	Channel  string
}
