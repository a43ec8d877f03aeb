package callback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	shutdownTimeout = 2 * time.Second
	unknownError    = "Unknown error"
)

const pages = `
{{define "success"}}<html>
  <head><title>Authentication Success</title></head>
  <body style="font-family: Arial, sans-serif; text-align: center; margin-top: 100px;">
    <h2>Authentication Successful!</h2>
    <p>You can now close this window and return to the application.</p>
    <script>setTimeout(function() { window.close(); }, 3000);</script>
  </body>
</html>{{end}}
{{define "error"}}<html>
  <head><title>Authentication Error</title></head>
  <body style="font-family: Arial, sans-serif; text-align: center; margin-top: 100px;">
    <h2>Authentication Failed</h2>
    <p>Error: {{.}}</p>
    <p>Please close this window and try again.</p>
  </body>
</html>{{end}}
{{define "used"}}<html>
  <head><title>Authentication Already Handled</title></head>
  <body style="font-family: Arial, sans-serif; text-align: center; margin-top: 100px;">
    <h2>This login was already handled.</h2>
    <p>Please close this window.</p>
  </body>
</html>{{end}}
{{define "notfound"}}<html><body><h2>Not Found</h2></body></html>{{end}}
`

var (
	templates = template.Must(template.New("callback").Parse(pages))
	modeOnce  sync.Once
)

// Result is what the provider sent to the redirect URI.
type Result struct {
	Code        string
	State       string
	Error       string
	Description string
}

// Listener accepts exactly one OAuth callback on the redirect URI.
type Listener struct {
	ln     net.Listener
	srv    *http.Server
	path   string
	result chan Result

	deliver   sync.Once
	closeOnce sync.Once
	served    chan struct{}
}

// Listen binds the host and port of redirectURI and starts serving.
func Listen(redirectURI string) (*Listener, error) {
	addr, path, err := splitRedirectURI(redirectURI)
	if err != nil {
		return nil, auth.ListenerBindError(redirectURI, err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, auth.ListenerBindError(addr, err)
	}

	modeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })

	l := &Listener{
		ln:     ln,
		path:   path,
		result: make(chan Result, 1),
		served: make(chan struct{}),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(template.Must(templates.Clone()))
	router.GET(path, l.handle)
	router.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "notfound", nil)
	})

	l.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(l.served)
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback listener stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	logger.Debug("callback listener started", map[string]any{
		"addr": ln.Addr().String(),
		"path": path,
	})

	return l, nil
}

// Result yields the single callback. It is buffered so the handler never
// blocks on a reader.
func (l *Listener) Result() <-chan Result {
	return l.result
}

// Addr is the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// URL is the redirect URI as actually bound.
func (l *Listener) URL() string {
	return "http://" + l.ln.Addr().String() + l.path
}

// Close stops the server and releases the port. Safe to call repeatedly.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err = l.srv.Shutdown(ctx); err != nil {
			err = l.srv.Close()
		}
		<-l.served

		logger.Debug("callback listener closed", map[string]any{
			"addr": l.ln.Addr().String(),
		})
	})
	return err
}

func (l *Listener) handle(c *gin.Context) {
	res := Result{
		Code:        c.Query("code"),
		State:       c.Query("state"),
		Error:       c.Query("error"),
		Description: c.Query("error_description"),
	}
	if res.Code == "" && res.Error == "" {
		res.Error = unknownError
	}

	first := false
	l.deliver.Do(func() {
		first = true
		l.result <- res
	})

	if !first {
		c.HTML(http.StatusConflict, "used", nil)
		return
	}

	if res.Code == "" {
		c.HTML(http.StatusBadRequest, "error", res.Error)
		return
	}
	c.HTML(http.StatusOK, "success", nil)
}

func splitRedirectURI(raw string) (addr string, path string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "http" {
		return "", "", fmt.Errorf("redirect uri must use http, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("redirect uri has no host")
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}

	path = u.Path
	if path == "" {
		path = "/"
	}
	return net.JoinHostPort(u.Hostname(), port), path, nil
}
