package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 16
	forwardBufferSize = 64
	shakeBufferSize   = 16
	// client buffer slots only shakes may use
	shakeReserve = 4

	commandTimeout  = 2 * time.Second
	shutdownTimeout = 5 * time.Second
	writeWait       = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Submitter runs a command on the goroutine that owns the monitor.
type Submitter interface {
	Submit(ctx context.Context, cmd monitor.Command) (monitor.Frame, error)
}

// WSMessage is what the server sends on /ws.
type WSMessage struct {
	Type  string              `json:"type"` // frame, shake, error
	Frame *monitor.Frame      `json:"frame,omitempty"`
	Shake *monitor.ShakeEvent `json:"shake,omitempty"`
	Error string              `json:"error,omitempty"`
}

type wsClient struct {
	id     string
	socket *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues msg unless the client is closed or fewer than reserve+1
// buffer slots are free.
func (c *wsClient) trySend(msg []byte, reserve int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || cap(c.send)-len(c.send) <= reserve {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WebServer serves the latest frame over HTTP and streams frames to
// websocket clients. It is a monitor.Sink.
type WebServer struct {
	submit    Submitter
	staticDir string
	log       *zap.Logger

	mu        sync.RWMutex
	lastFrame monitor.Frame
	haveFrame bool

	forward       chan []byte
	shakes        chan []byte
	droppedShakes atomic.Uint64
	join          chan *wsClient
	leave   chan *wsClient
	clients map[*wsClient]bool
	done    chan struct{}
	start   sync.Once
}

// NewWebServer creates a server that forwards inbound commands to submit.
// An empty staticDir disables static file serving.
func NewWebServer(submit Submitter, staticDir string, log *zap.Logger) *WebServer {
	return &WebServer{
		submit:    submit,
		staticDir: staticDir,
		log:       log,
		forward:   make(chan []byte, forwardBufferSize),
		shakes:    make(chan []byte, shakeBufferSize),
		join:      make(chan *wsClient),
		leave:     make(chan *wsClient),
		clients:   make(map[*wsClient]bool),
		done:      make(chan struct{}),
	}
}

// Publish stores f and broadcasts it. It never blocks.
func (s *WebServer) Publish(f monitor.Frame) {
	s.mu.Lock()
	s.lastFrame = f
	s.haveFrame = true
	s.mu.Unlock()

	if shake, ok := f.Shake(); ok {
		if !s.broadcast(s.shakes, WSMessage{Type: "shake", Shake: &shake}) {
			s.shakeLost("hub queue full", zap.Int64("at_ms", shake.AtMs))
		}
	}
	// a dropped frame is superseded by the next one
	s.broadcast(s.forward, WSMessage{Type: "frame", Frame: &f})
}

func (s *WebServer) broadcast(queue chan<- []byte, msg WSMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("websocket marshal error", zap.Error(err))
		return false
	}
	select {
	case queue <- payload:
		return true
	default:
		return false
	}
}

func (s *WebServer) shakeLost(reason string, field zap.Field) {
	n := s.droppedShakes.Add(1)
	s.log.Warn("websocket shake lost",
		zap.String("reason", reason),
		field,
		zap.Uint64("dropped_shakes", n),
	)
}

// DroppedShakes returns how many shake deliveries were lost so far.
func (s *WebServer) DroppedShakes() uint64 { return s.droppedShakes.Load() }

// Latest returns the last published frame.
func (s *WebServer) Latest() (monitor.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFrame, s.haveFrame
}

// Start runs the websocket hub until ctx is done. Calling it more than once
// has no effect.
func (s *WebServer) Start(ctx context.Context) {
	s.start.Do(func() { go s.runHub(ctx) })
}

func (s *WebServer) runHub(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			for c := range s.clients {
				delete(s.clients, c)
				c.close()
			}
			return

		case c := <-s.join:
			s.clients[c] = true
			s.log.Debug("websocket client joined", zap.String("client", c.id), zap.Int("clients", len(s.clients)))

		case c := <-s.leave:
			delete(s.clients, c)
			c.close()
			s.log.Debug("websocket client left", zap.String("client", c.id), zap.Int("clients", len(s.clients)))

		case msg := <-s.shakes:
			for c := range s.clients {
				if !c.trySend(msg, 0) {
					s.shakeLost("client too slow", zap.String("client", c.id))
				}
			}

		case msg := <-s.forward:
			for c := range s.clients {
				if !c.trySend(msg, shakeReserve) {
					s.log.Debug("websocket client too slow, frame dropped", zap.String("client", c.id))
				}
			}
		}
	}
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// Run serves on addr until ctx is done.
func (s *WebServer) Run(ctx context.Context, addr string) error {
	s.Start(ctx)

	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("web server shutdown", zap.Error(err))
		}
	}()

	s.log.Info("web server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	f, ok := s.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, f, s.log)
}

func (s *WebServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd monitor.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid command: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	f, err := s.submit.Submit(ctx, cmd)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, f, s.log)
}

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	c := &wsClient{
		id:     uuid.NewString(),
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
	}

	select {
	case s.join <- c:
	case <-s.done:
		socket.Close()
		return
	}
	defer func() {
		select {
		case s.leave <- c:
		case <-s.done:
		}
	}()

	if f, ok := s.Latest(); ok {
		s.reply(c, WSMessage{Type: "frame", Frame: &f})
	}

	go s.write(c)
	s.read(r.Context(), c)
}

// read handles inbound commands until the socket fails.
func (s *WebServer) read(ctx context.Context, c *wsClient) {
	defer c.socket.Close()
	for {
		var cmd monitor.Command
		if err := c.socket.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		f, err := s.submit.Submit(cmdCtx, cmd)
		cancel()
		if err != nil {
			s.reply(c, WSMessage{Type: "error", Error: err.Error()})
			continue
		}
		s.reply(c, WSMessage{Type: "frame", Frame: &f})
	}
}

// reply queues msg for c only. A full buffer drops it.
func (s *WebServer) reply(c *wsClient, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("websocket marshal error", zap.Error(err))
		return
	}
	c.trySend(payload, 0)
}

func (s *WebServer) write(c *wsClient) {
	defer c.socket.Close()
	for msg := range c.send {
		_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// writeJSON encodes v before writing the header, so a value that cannot be
// encoded becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any, log *zap.Logger) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error("json encode error", zap.Error(err))
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(payload, '\n')); err != nil {
		log.Warn("response write error", zap.Error(err))
	}
}
