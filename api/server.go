package api

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/webdav"

	"github.com/moyoez/syncclipboard-go/api/controllers"
	"github.com/moyoez/syncclipboard-go/api/models"
	"github.com/moyoez/syncclipboard-go/notify"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const defaultUploadDir = "uploads"

// Options configures the clipboard HTTP server.
type Options struct {
	Host string
	Port int
	// Token enables bearer authentication when non-empty.
	Token     string
	UploadDir string
	WebDAV    bool
	// TLS switches the listener to HTTPS when set.
	TLS     *tls.Config
	Self    types.Device
	Version string
}

// Server serves the clipboard, blob, history and discovery endpoints.
type Server struct {
	opts     Options
	store    controllers.ClipboardStore
	broker   *notify.Broker
	devices  controllers.DeviceLister
	listener controllers.SaveListener
	clients  *models.ClientTracker

	engine *gin.Engine
	mu     sync.RWMutex
	server *http.Server
}

// NewServer wires the routes. devices and listener may be nil.
func NewServer(opts Options, st controllers.ClipboardStore, broker *notify.Broker, devices controllers.DeviceLister, listener controllers.SaveListener) *Server {
	if opts.UploadDir == "" {
		opts.UploadDir = defaultUploadDir
	}
	if broker == nil {
		broker = notify.NewBroker()
	}
	s := &Server{
		opts:     opts,
		store:    st,
		broker:   broker,
		devices:  devices,
		listener: listener,
		clients:  models.NewClientTracker(models.DefaultClientWindow),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) scheme() string {
	if s.opts.TLS != nil {
		return "https"
	}
	return "http"
}

// URL is the address clients should use, preferring a LAN address when
// bound to all interfaces.
func (s *Server) URL() string {
	host := s.opts.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = s.opts.Self.IP
		if host == "" {
			host = "127.0.0.1"
		}
	}
	return tool.BuildBaseURL(s.scheme(), host, s.opts.Port)
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.trackClients(), s.authenticate())

	clipboard := controllers.NewClipboardController(s.store, s.broker, s.listener)
	files := controllers.NewFileController(s.opts.UploadDir)
	history := controllers.NewHistoryController(s.store)
	discovery := controllers.NewDiscoveryController(s.opts.Self, s.opts.Version, s.URL(), s.devices, s.clients)

	r.GET(tool.ClipboardPath, clipboard.HandleGet)
	r.PUT(tool.ClipboardPath, clipboard.HandlePut)

	r.PUT(tool.FilePathPrefix+":name", files.HandlePut)
	r.GET(tool.FilePathPrefix+":name", files.HandleGet)
	r.HEAD(tool.FilePathPrefix+":name", files.HandleHead)

	r.GET(tool.HistoryPath, history.HandleList)
	r.DELETE(tool.HistoryPath+"/:id", history.HandleDelete)
	r.PATCH(tool.HistoryPath+"/:id", history.HandlePatch)

	apiGroup := r.Group("/api")
	apiGroup.GET("/discovery", discovery.HandleInfo)
	apiGroup.GET("/devices", discovery.HandleDevices)
	apiGroup.GET("/connected_devices", discovery.HandleConnected)
	apiGroup.GET("/qrcode", discovery.HandleQRCode)

	if s.opts.WebDAV {
		if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
			tool.DefaultLogger.Warnf("[API] webdav upload dir %s unavailable: %v", s.opts.UploadDir, err)
		}
		dav := &webdav.Handler{
			Prefix:     "/webdav",
			FileSystem: webdav.Dir(s.opts.UploadDir),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					tool.DefaultLogger.Debugf("[API] webdav %s %s: %v", r.Method, r.URL.Path, err)
				}
			},
		}
		r.Any("/webdav/*path", gin.WrapH(dav))
		for _, method := range []string{"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK"} {
			r.Handle(method, "/webdav/*path", gin.WrapH(dav))
		}
	}
	return r
}

// authenticate rejects requests without the configured bearer token.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.Token)) != 1 {
			tool.DefaultLogger.Debugf("[API] unauthorized %s %s from %s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, tool.FastReturnError("unauthorized"))
			return
		}
		c.Next()
	}
}

func (s *Server) trackClients() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodOptions {
			s.clients.Touch(clientIP(c), c.GetHeader(controllers.HeaderDeviceName), c.Request.UserAgent())
		}
		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	ip := c.ClientIP()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving until Shutdown. http.ErrServerClosed is reported as nil.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.opts.Host, fmt.Sprintf("%d", s.opts.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		TLSConfig:         s.opts.TLS,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	tool.DefaultLogger.Infof("[API] starting clipboard server on %s://%s", s.scheme(), addr)
	var err error
	if s.opts.TLS != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones,
// including parked long polls, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	// Wake long polls so they return promptly.
	s.broker.NotifyAll()
	return srv.Shutdown(ctx)
}
