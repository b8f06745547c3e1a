// Package control exposes the shuttle's operational surface: health,
// checkpoint inspection, and on-demand reconciliation, split into a
// Server and a chain of router-building steps (CreateBaseRouter,
// AddMiddleware, AddRoutes) so each can be composed independently.
package control

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/comunifi/shuttle/internal/reconciler"
	"github.com/comunifi/shuttle/pkg/shuttle"
)

type Server struct {
	hubID      string
	checkpoint shuttle.Checkpoint
	hub        shuttle.HubClient
	reconciler *reconciler.Reconciler
}

func NewServer(hubID string, checkpoint shuttle.Checkpoint, hub shuttle.HubClient, r *reconciler.Reconciler) *Server {
	return &Server{hubID: hubID, checkpoint: checkpoint, hub: hub, reconciler: r}
}

const healthzHubTimeout = 250 * time.Millisecond

func (s *Server) Start(port int, handler http.Handler) error {
	log.Printf("control server starting on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), handler)
}
