package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/sanaa360/creator-cli/internal/logging"
	"github.com/sanaa360/creator-cli/internal/misc"
)

// Server is the local HTTP server that receives the TikTok OAuth redirect.
// It listens on localhost for the authorization response, captures the code
// and state parameters, and hands them to the waiting login flow.
type Server struct {
	// server is the underlying HTTP server instance
	server *http.Server
	// port is the port number on which the server listens
	port int
	// resultChan is a channel for sending callback results
	resultChan chan *misc.OAuthCallback
	// errorChan is a channel for sending server errors
	errorChan chan error
	// mu is a mutex for protecting server state
	mu sync.Mutex
	// running indicates whether the server is currently running
	running bool
}

// NewServer creates a new local callback server listening on the given port.
func NewServer(port int) *Server {
	return &Server{
		port:       port,
		resultChan: make(chan *misc.OAuthCallback, 1),
		errorChan:  make(chan error, 1),
	}
}

// RedirectURI returns the redirect URI TikTok should send the creator back to.
func (s *Server) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/auth/callback", s.port)
}

// Start starts the callback server.
// It sets up the HTTP handlers for the callback and result pages,
// and begins listening on the configured port.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	if !s.isPortAvailable() {
		return fmt.Errorf("port %d is already in use", s.port)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	router.GET("/auth/callback", s.handleCallback)
	router.GET("/success", s.handleSuccess)
	router.GET("/failure", s.handleFailure)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("localhost:%d", s.port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.running = true

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errorChan <- fmt.Errorf("callback server failed: %w", err)
		}
	}()

	// Give server a moment to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Stop gracefully stops the callback server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	log.Debug("Stopping OAuth callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil

	return err
}

// WaitForCallback blocks until the browser redirect arrives, the server
// fails, or the timeout elapses.
func (s *Server) WaitForCallback(timeout time.Duration) (*misc.OAuthCallback, error) {
	select {
	case result := <-s.resultChan:
		return result, nil
	case err := <-s.errorChan:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for OAuth callback")
	}
}

// handleCallback handles the OAuth redirect endpoint.
// It extracts the authorization parameters from the query string and sends
// them to the waiting channel. The exchange with the backend happens in the
// CLI, not here, so the page redirect only reflects what the redirect itself
// carried.
func (s *Server) handleCallback(c *gin.Context) {
	log.WithField("request_id", logging.GetGinRequestID(c)).Debug("Received OAuth callback")

	result := &misc.OAuthCallback{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}
	s.sendResult(result)

	if result.Error != "" || result.Code == "" {
		c.Redirect(http.StatusFound, "/failure")
		return
	}
	c.Redirect(http.StatusFound, "/success")
}

func (s *Server) handleSuccess(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(LoginSuccessHtml))
}

func (s *Server) handleFailure(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(LoginFailureHtml))
}

// sendResult sends the callback result without blocking the handler.
func (s *Server) sendResult(result *misc.OAuthCallback) {
	select {
	case s.resultChan <- result:
		log.Debug("OAuth callback sent to channel")
	default:
		log.Warn("OAuth callback channel is full, result dropped")
	}
}

// isPortAvailable checks if the configured port is free to listen on.
func (s *Server) isPortAvailable() bool {
	addr := fmt.Sprintf("localhost:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	defer func() {
		_ = listener.Close()
	}()
	return true
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
