package internal

import (
	"context"
	"fmt"
	"github.com/julienschmidt/httprouter"
	"net"
	"net/http"
	"paygate/config"
	"paygate/services"
	"time"
)

// every path below the root is a priced resource
const protectedResource = "/*resource"

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	checkout   http.Handler
	logger     services.LogHandler
}

func NewServer(conf *config.Config) *Server {

	server := Server{
		conf: conf,
	}

	// register itself as a router for httpServer handler
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &server
}

// Register routes GET requests to the checkout; the router answers any other
// method with 405.
func (s *Server) Register(router *httprouter.Router) {
	router.GET(protectedResource, s.download)
	router.HandleMethodNotAllowed = true
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
}

func (s *Server) SetCheckout(checkout http.Handler) {
	s.checkout = checkout
}

func (s *Server) SetLogger(logger services.LogHandler) {
	s.logger = logger
}

// Start listens until Shutdown is called; it returns nil after a clean shutdown.
func (s *Server) Start() error {
	if s.conf == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if s.checkout == nil {
		return fmt.Errorf("checkout not set")
	}

	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	if s.conf.Listen.TLS {
		s.logger.Info(fmt.Sprintf("starting https TLS on %s", serverAddress))
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Info(fmt.Sprintf("starting http on %s", serverAddress))
		err = s.httpServer.Serve(listener)
	}

	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.checkout == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.checkout.ServeHTTP(w, r)
}
