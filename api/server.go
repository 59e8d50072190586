package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wricardo/gobang-online/auth"
	"github.com/wricardo/gobang-online/game/room"
	"github.com/wricardo/gobang-online/game/service"
	"github.com/wricardo/gobang-online/transport/websocket"
)

// Authenticator signs users in and out and identifies requests.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(token string)
	Identify(r *http.Request) (string, error)
}

// WebSocketServer upgrades an authenticated request into a realtime
// connection.
type WebSocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, identity, roomName string)
}

// Server represents the HTTP server: pages, login, REST queries, websocket
// upgrade and operational endpoints.
type Server struct {
	coordinator service.Coordinator
	auth        Authenticator
	ws          WebSocketServer
	router      *mux.Router

	staticDir string
	version   string
	gatherer  prometheus.Gatherer
	mcpServer *server.MCPServer
	log       zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithStaticDir sets the directory pages and assets are served from.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithVersion sets the version reported by /version.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithGatherer exposes g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMCPServer mounts the MCP JSON-RPC endpoint on POST /mcp.
func WithMCPServer(m *server.MCPServer) Option {
	return func(s *Server) {
		s.mcpServer = m
	}
}

// NewServer creates a new HTTP server
func NewServer(coordinator service.Coordinator, authn Authenticator, ws WebSocketServer, opts ...Option) *Server {
	s := &Server{
		coordinator: coordinator,
		auth:        authn,
		ws:          ws,
		router:      mux.NewRouter(),
		staticDir:   "public",
		version:     "dev",
		gatherer:    prometheus.DefaultGatherer,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "api").Logger()

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Read-only projections, the same data the websocket queries return
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{name}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{name}/users", s.handleListRoomUsers).Methods("GET")
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	// Sign in / out
	s.router.HandleFunc("/login", s.handleLogin).Methods("POST")
	s.router.HandleFunc("/logout", s.handleLogout).Methods("POST")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Operations
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	if s.mcpServer != nil {
		s.router.HandleFunc("/mcp", s.handleMCP).Methods("POST")
	}

	// Pages
	s.router.HandleFunc("/", s.page("index.html", false)).Methods("GET")
	s.router.HandleFunc("/lobby", s.page("lobby.html", true)).Methods("GET")
	s.router.HandleFunc("/room/{id}", s.handleRoomPage).Methods("GET")

	// Static assets, also reachable below /room/ for relative links
	s.router.PathPrefix("/room/").Handler(http.StripPrefix("/room", http.HandlerFunc(s.handleStatic)))
	s.router.PathPrefix("/").HandlerFunc(s.handleStatic)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Query Handlers

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.coordinator.UserList(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("user list")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if users == nil {
		users = []service.UserInfo{}
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.coordinator.RoomList(r.Context()))
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	info, err := s.coordinator.RoomInfo(r.Context(), name)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListRoomUsers(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	members, err := s.coordinator.UserListInRoom(r.Context(), name)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (s *Server) respondQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, room.ErrNoSuchRoom) {
		respondError(w, http.StatusNotFound, room.Reason(err))
		return
	}
	s.log.Warn().Err(err).Msg("room query")
	respondError(w, http.StatusInternalServerError, err.Error())
}

// Auth Handlers

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var req loginRequest
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid form")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, auth.ErrAlreadySignedIn):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.log.Warn().Err(err).Str("user", req.Username).Msg("login")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.SetCookie(w, auth.SessionCookie(token))
	if !isJSON {
		http.Redirect(w, r, "/lobby", http.StatusSeeOther)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"username": req.Username,
		"token":    token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		s.auth.Logout(token)
	}
	http.SetCookie(w, auth.ExpiredCookie())
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "signed out",
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.Identify(r)
	if err != nil {
		http.Error(w, "sign in required", http.StatusUnauthorized)
		return
	}

	s.ws.ServeWS(w, r, identity, websocket.RoomFromRequest(r))
}

// MCP Handler

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := s.mcpServer.HandleMessage(r.Context(), body)

	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseData)
}

// Operational Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"name":    "gobang-online",
		"version": s.version,
	})
}

// Pages

// page serves a fixed file from the static dir. Pages that need a signed-in
// user send anonymous visitors back to the start page.
func (s *Server) page(name string, signedIn bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if signedIn {
			if _, err := s.auth.Identify(r); err != nil {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
		}
		s.serveFile(w, r, name)
	}
}

// handleRoomPage serves room.html for /room/<name>, unless <name> is an
// asset that exists in the static dir.
func (s *Server) handleRoomPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.exists(id) {
		s.serveFile(w, r, id)
		return
	}
	s.page("room.html", true)(w, r)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}
	s.serveFile(w, r, name)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	if !s.exists(name) {
		s.notFound(w, r)
		return
	}
	http.ServeFile(w, r, s.staticPath(name))
}

// notFound answers with 404.html when the static dir has one.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	page, err := os.ReadFile(s.staticPath("404.html"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write(page)
}

func (s *Server) exists(name string) bool {
	info, err := os.Stat(s.staticPath(name))
	return err == nil && !info.IsDir()
}

func (s *Server) staticPath(name string) string {
	clean := path.Clean("/" + name)
	return filepath.Join(s.staticDir, filepath.FromSlash(clean))
}
