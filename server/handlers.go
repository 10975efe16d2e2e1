package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"scriptrelay/pkg/config"
	"scriptrelay/pkg/logger"
	"scriptrelay/pkg/protocol"
	"scriptrelay/pkg/storage"
	"scriptrelay/relay"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP/WebSocket front of the relay
type Server struct {
	cfg         *config.RelayConfig
	log         *logger.Logger
	store       storage.Store
	registry    *relay.Registry
	broadcaster *relay.Broadcaster
	monitor     *relay.Monitor
	gateway     *relay.Gateway

	httpServer    *http.Server
	serverMu      sync.Mutex
	monitorCancel context.CancelFunc
}

// NewServer creates a new server instance from initialized services
func NewServer(services *Services) *Server {
	return &Server{
		cfg:         services.Config,
		log:         services.Logger,
		store:       services.Store,
		registry:    services.Registry,
		broadcaster: services.Broadcaster,
		monitor:     services.Monitor,
		gateway:     services.Gateway,
	}
}

// Router builds the gin router with all relay routes
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// WebSocket endpoint for executor clients
	router.GET("/ws", s.ginHandleWebSocket)

	// Operator endpoints
	router.POST("/execute", s.handleExecute)
	router.GET("/status", s.handleStatus)
	router.GET("/history", s.handleHistory)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Start starts the heartbeat monitor and the HTTP listener. It blocks until
// the listener stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.monitorCancel = cancel
	s.monitor.Start(ctx)

	router := s.Router()

	s.log.InfoWith("server starting", "address", s.cfg.Address)

	if s.cfg.TLS.Enabled {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		server := &http.Server{
			Addr:      s.cfg.Address,
			Handler:   router,
			TLSConfig: tlsConfig,
		}

		s.serverMu.Lock()
		s.httpServer = server
		s.serverMu.Unlock()

		return server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}

	server := &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.serverMu.Lock()
	s.httpServer = server
	s.serverMu.Unlock()

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.InfoWith("initiating graceful shutdown")

	if s.monitorCancel != nil {
		s.monitorCancel()
	}

	s.serverMu.Lock()
	httpServer := s.httpServer
	s.serverMu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.log.ErrorWithErr("error shutting down HTTP server", err)
			httpServer.Close()
		}
	}

	// Evicting every client closes their senders; the write pumps shut the
	// transports down and the read loops unwind.
	snapshot := s.registry.SnapshotSenders()
	ids := make([]uint64, 0, len(snapshot))
	for _, ref := range snapshot {
		ids = append(ids, ref.ID)
	}
	s.registry.Evict(ids)

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.ErrorWithErr("error closing dispatch log", err)
		}
	}

	s.log.InfoWith("graceful shutdown complete")
	return nil
}

func (s *Server) ginHandleWebSocket(c *gin.Context) {
	s.gateway.HandleConnection(c.Writer, c.Request)
}

// handleExecute reads a script file path from the request body, validates
// it, and broadcasts the script to all connected clients.
func (s *Server) handleExecute(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ExecuteResponse{
			Success: false,
			Error:   "Failed to read request body",
		})
		return
	}

	filePath := strings.TrimSpace(string(body))
	if filePath == "" {
		c.JSON(http.StatusBadRequest, ExecuteResponse{
			Success: false,
			Error:   "No file path provided",
		})
		return
	}

	info, err := os.Stat(filePath)
	if err != nil {
		c.JSON(http.StatusBadRequest, ExecuteResponse{
			Success: false,
			Error:   fmt.Sprintf("File '%s' does not exist", filePath),
		})
		return
	}
	if info.IsDir() {
		c.JSON(http.StatusBadRequest, ExecuteResponse{
			Success: false,
			Error:   fmt.Sprintf("'%s' is not a file", filePath),
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	if !s.cfg.AllowsExtension(ext) {
		c.JSON(http.StatusBadRequest, ExecuteResponse{
			Success: false,
			Error: fmt.Sprintf("File must be one of %v, got '%s'",
				s.cfg.Scripts.AllowedExtensions, ext),
		})
		return
	}

	code, err := os.ReadFile(filePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ExecuteResponse{
			Success: false,
			Error:   fmt.Sprintf("Error reading file: %v", err),
		})
		return
	}

	filename := filepath.Base(filePath)

	payload, err := protocol.NewExecuteDirective(string(code), filename, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ExecuteResponse{
			Success: false,
			Error:   fmt.Sprintf("Error serializing message: %v", err),
		})
		return
	}

	delivered, total := s.broadcaster.Broadcast(payload)
	s.recordDispatch(filename, delivered, total)

	switch {
	case total == 0:
		c.JSON(http.StatusServiceUnavailable, ExecuteResponse{
			Success:        false,
			Error:          "No clients connected",
			ClientsReached: intPtr(0),
			TotalClients:   intPtr(0),
		})
	case delivered == total:
		c.JSON(http.StatusOK, ExecuteResponse{
			Success:        true,
			Message:        fmt.Sprintf("Script '%s' sent to all connected clients", filename),
			ClientsReached: intPtr(delivered),
			TotalClients:   intPtr(total),
		})
	default:
		// Covers both partial delivery and every client vanishing between
		// snapshot and send; the tally distinguishes the two for callers.
		c.JSON(http.StatusMultiStatus, ExecuteResponse{
			Success:        false,
			Error:          fmt.Sprintf("Script '%s' only reached %d/%d clients", filename, delivered, total),
			ClientsReached: intPtr(delivered),
			TotalClients:   intPtr(total),
		})
	}
}

// recordDispatch appends the broadcast outcome to the dispatch log.
// Log failures are reported but never affect the caller's response.
func (s *Server) recordDispatch(filename string, delivered, total int) {
	if s.store == nil {
		return
	}

	err := s.store.RecordDispatch(&storage.Dispatch{
		ID:        uuid.NewString(),
		Filename:  filename,
		Delivered: delivered,
		Total:     total,
		Outcome:   storage.ClassifyOutcome(delivered, total),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.WarnWith("failed to record dispatch", "filename", filename, "error", err)
	}
}

// handleStatus reports the relay state and host resource usage
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:           "running",
		ConnectedClients: s.registry.Count(),
		Timestamp:        time.Now().Format(time.RFC3339),
		System:           collectSystemStats(s.log),
	})
}

// handleHistory returns the most recent dispatch log records
func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Dispatch log not available"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if val > 500 {
			val = 500
		}
		limit = val
	}

	dispatches, err := s.store.RecentDispatches(limit)
	if err != nil {
		s.log.ErrorWithErr("failed to read dispatch log", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read dispatch log"})
		return
	}
	if dispatches == nil {
		dispatches = []*storage.Dispatch{}
	}

	c.JSON(http.StatusOK, HistoryResponse{Dispatches: dispatches})
}
