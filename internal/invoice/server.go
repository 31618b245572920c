package invoice

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// Server handles HTTP requests for invoices
type Server struct {
	service       *Service
	basicAuth     BasicAuth
	allowedOrigin string
	mux           *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) enabled() bool {
	return a.Username != "" || a.Password != ""
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth, allowedOrigin string) *Server {
	return NewServerWithMux(service, basicAuth, allowedOrigin, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, allowedOrigin string, mux *http.ServeMux) *Server {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	s := &Server{
		service:       service,
		basicAuth:     basicAuth,
		allowedOrigin: allowedOrigin,
		mux:           mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if !s.basicAuth.enabled() {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// uploaderID identifies the caller. With basic auth enabled it is the
// authenticated user, otherwise the X-User-ID header set by an upstream
// identity proxy.
func (s *Server) uploaderID(r *http.Request) string {
	if s.basicAuth.enabled() {
		user, _, _ := r.BasicAuth()
		return user
	}
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="InvoiceFlow"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// cors sets CORS headers on every response and answers preflight requests
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/workspaces/{workspace}", s.requireAuth(s.handleGetWorkspace))
	s.mux.HandleFunc("PUT /api/workspaces/{workspace}/categories", s.requireAuth(s.handlePutCategories))
	s.mux.HandleFunc("GET /api/workspaces/{workspace}/corrections", s.requireAuth(s.handleListCorrections))

	s.mux.HandleFunc("GET /api/workspaces/{workspace}/invoices/{id}/file", s.requireAuth(s.handleGetInvoiceFile))
	s.mux.HandleFunc("POST /api/workspaces/{workspace}/invoices/{id}/paid", s.requireAuth(s.handleMarkPaid))
	s.mux.HandleFunc("GET /api/workspaces/{workspace}/invoices/{id}", s.requireAuth(s.handleGetInvoice))
	s.mux.HandleFunc("PUT /api/workspaces/{workspace}/invoices/{id}", s.requireAuth(s.handleEditInvoice))
	s.mux.HandleFunc("GET /api/workspaces/{workspace}/invoices", s.requireAuth(s.handleListInvoices))
	s.mux.HandleFunc("POST /api/workspaces/{workspace}/invoices", s.requireAuth(s.handleUploadInvoice))

	s.mux.HandleFunc("GET /api/workspaces/{workspace}/stats", s.requireAuth(s.handleDashboardStats))
	s.mux.HandleFunc("GET /api/workspaces/{workspace}/analytics", s.requireAuth(s.handleAnalytics))
	s.mux.HandleFunc("GET /api/workspaces/{workspace}/export.xlsx", s.requireAuth(s.handleExport))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.cors(s.mux).ServeHTTP(w, r)
}
