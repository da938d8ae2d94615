package signerrpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Manta-Network/manta-signer/zkp"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/net/netutil"
)

// Default service settings.
const (
	DefaultServiceURL = "127.0.0.1:29987"
	DevOrigin         = "http://localhost:8000"
	ProdOrigin        = "https://dapp-alpha.manta.network"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// Config holds the settings of the signer service.
type Config struct {
	// ServiceURL is the host:port the service listens on.
	ServiceURL string

	// Origins are the dApp origins CORS allows.
	Origins []string

	// MaxClients caps simultaneous connections.  Zero means no cap.
	MaxClients int

	// RetryDelay is the wait after a wrong password.
	RetryDelay time.Duration

	// Version is reported in every response.
	Version string

	// Clock drives the retry delay.  The system clock is used when nil.
	Clock clock.Clock
}

// Server is the HTTP service the dApp talks to.
type Server struct {
	cfg    Config
	state  *rootSeedState
	engine *zkp.Engine
	echo   *echo.Echo
	ui     *UIAuthorizer

	wg       sync.WaitGroup
	mtx      sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
}

// NewServer builds the service.  The root seed is decrypted by loader with
// passwords from authorizer and payloads are proved with engine.  A
// *UIAuthorizer is additionally served on /authorizer.
func NewServer(cfg *Config, loader SeedLoader, authorizer Authorizer,
	engine *zkp.Engine) *Server {

	c := *cfg
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if len(c.Origins) == 0 {
		c.Origins = []string{DevOrigin, ProdOrigin}
	}
	if c.Clock == nil {
		c.Clock = clock.NewDefaultClock()
	}

	s := &Server{
		cfg:    c,
		state:  newRootSeedState(loader, authorizer, c.Clock, c.RetryDelay),
		engine: engine,
		echo:   echo.New(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debugf("%s %s %d (%v)", v.Method, v.URI, v.Status,
				v.Latency.Round(time.Millisecond))
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     c.Origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowCredentials: false,
	}))

	e.GET("/heartbeat", s.heartbeat)
	e.POST("/recoverAccount", s.recoverAccount)
	e.POST("/deriveShieldedAddress", s.deriveShieldedAddress)
	e.POST("/generateAsset", s.generateAsset)
	e.POST("/generateMintData", s.generateMintData)
	e.POST("/generatePrivateTransferData", s.generatePrivateTransferData)
	e.POST("/generateReclaimData", s.generateReclaimData)
	if ui, ok := authorizer.(*UIAuthorizer); ok {
		s.ui = ui
		e.GET("/authorizer", ui.serveWS)
	}

	return s
}

// ServeHTTP serves a single request, which allows the server to be driven
// without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Unlock asks for the starting password until it decrypts the root seed.
func (s *Server) Unlock(ctx context.Context) error {
	log.Infof("Checking password")
	if err := s.state.unlock(ctx); err != nil {
		return err
	}
	log.Infof("Signer unlocked")
	return nil
}

// Start binds the service URL and unlocks the signer with the starting
// password.  Requests are served only once the signer is unlocked, except
// with a UI authorizer, which connects through the service itself.  Those
// requests wait for the unlock.  Start returns once the service is up.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.ServiceURL)
	if err != nil {
		return err
	}
	if s.cfg.MaxClients > 0 {
		l = netutil.LimitListener(l, s.cfg.MaxClients)
	}

	if s.ui != nil {
		s.Serve(l)
		if err := s.Unlock(ctx); err != nil {
			s.Stop()
			return err
		}
		return nil
	}

	if err := s.Unlock(ctx); err != nil {
		l.Close()
		return err
	}
	s.Serve(l)
	return nil
}

// Serve handles requests on l until Stop is called.
func (s *Server) Serve(l net.Listener) {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mtx.Lock()
	s.httpSrv = srv
	s.listener = l
	s.mtx.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Infof("Listening on %s", l.Addr())
		err := srv.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Service stopped: %v", err)
		}
		log.Tracef("Finished serving %s", l.Addr())
	}()
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts down the listener and waits for in-flight requests.
func (s *Server) Stop() {
	s.mtx.Lock()
	srv := s.httpSrv
	s.mtx.Unlock()
	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("Unable to shut down service cleanly: %v", err)
	}
	s.wg.Wait()
}
