// -----------------------------------------------------------------------
// Last Modified: Saturday, 15th November 2025 10:18:46 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (live editor sessions)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Static image files backing picker cards and entry wrappers
	imagesDir := s.app.Config.Storage.Filesystem.Images
	mux.Handle("/images/", http.StripPrefix("/images/", http.FileServer(http.Dir(imagesDir))))

	// API routes - Entries
	mux.HandleFunc("/api/entries/stats", s.app.EntryHandler.StatsHandler)
	mux.HandleFunc("/api/entries/save", s.app.EntryHandler.SaveHandler)
	mux.HandleFunc("/api/entries", s.handleEntriesRoute) // GET (list), POST (create)
	mux.HandleFunc("/api/entries/", s.handleEntryRoutes) // GET/DELETE /{id}

	// API routes - Images
	mux.HandleFunc("/api/images", s.handleImagesRoute)  // GET (list), POST (add)
	mux.HandleFunc("/api/images/", s.handleImageRoutes) // GET/DELETE /{uuid}, GET /{uuid}/inspect

	// API routes - Publish
	mux.HandleFunc("/api/publish/run", s.app.PublishHandler.RunHandler) // POST - export pass now

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler) // GET - application status
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleEntriesRoute routes /api/entries requests (list and create)
func (s *Server) handleEntriesRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.EntryHandler.ListHandler, s.app.EntryHandler.CreateHandler)
}

// handleEntryRoutes routes /api/entries/{id} requests. Content updates flow
// through /api/entries/save, so there is no PUT here.
func (s *Server) handleEntryRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r, s.app.EntryHandler.GetHandler, nil, s.app.EntryHandler.DeleteHandler)
}

// handleImagesRoute routes /api/images requests (list and add)
func (s *Server) handleImagesRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.ImageHandler.ListHandler, s.app.ImageHandler.AddHandler)
}

// handleImageRoutes routes /api/images/{uuid} requests and the inspect link
func (s *Server) handleImageRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if RouteByPathSuffix(w, r, "/api/images/", []PathSuffixRouter{
			{Suffix: "/inspect", Handler: s.app.ImageHandler.InspectHandler},
		}) {
			return
		}
	}
	RouteResourceItem(w, r, s.app.ImageHandler.GetHandler, nil, s.app.ImageHandler.DeleteHandler)
}
