package main

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// pongWait bounds how long a read blocks without any inbound traffic.
// Kept comfortably above the liveness idle threshold so the monitor,
// not the read deadline, is what normally decides an idle eviction.
const pongWait = 90 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	cfg        *Config
	registry   *Registry
	dispatcher *Dispatcher
	verifier   *TokenVerifier
	limiter    *HandshakeLimiter
	srv        *http.Server
}

func NewServer(cfg *Config, registry *Registry, dispatcher *Dispatcher, verifier *TokenVerifier) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		verifier:   verifier,
		limiter:    NewHandshakeLimiter(cfg.HandshakeRatePerIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)

	s.srv = &http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s
}

func (s *Server) ListenAndServe() error {
	if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		log.Printf("TLS enabled (cert=%s)", s.cfg.TLSCert)
		return s.srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	}
	log.Println("TLS disabled (no cert/key configured)")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleWS authenticates the upgrade request, registers the connection,
// and then owns its read loop until the connection dies. Identity must
// be proven before the WebSocket exists; an unauthenticated request is
// rejected with 401 and never reaches the registry.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.limiter.Allow(ip) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	claims, err := s.verifier.Verify(bearerToken(r))
	if err != nil {
		log.Printf("handshake rejected ip=%s reason=%v", ip, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	conn := NewConn(claims.UserID, ws)
	s.registry.Register(claims.UserID, conn)
	log.Printf("connected userId=%d connId=%s ip=%s", claims.UserID, conn.ID(), ip)

	s.readLoop(r.Context(), conn, ws)
}

// readLoop processes one connection's frames sequentially, so a
// sender's messages reach broadcast in the order they arrived. Pongs
// refresh the last-active timestamp without touching business logic.
func (s *Server) readLoop(ctx context.Context, c *Conn, ws *websocket.Conn) {
	defer s.registry.EvictConn(c, ReasonUnreliable)

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		c.Touch()
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read error userId=%d connId=%s: %v", c.UserID(), c.ID(), err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		in, err := DecodeInbound(data)
		if err != nil {
			log.Printf("bad payload userId=%d connId=%s: %v", c.UserID(), c.ID(), err)
			s.registry.EvictConn(c, ReasonBadData)
			return
		}

		s.dispatcher.Dispatch(ctx, c, in)
	}
}

// bearerToken pulls the handshake token from the Authorization header
// or the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
