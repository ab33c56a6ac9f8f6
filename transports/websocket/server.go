package websocket

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"echopilot/capture"
	"echopilot/config"
	"echopilot/core"
	"echopilot/export"
	"echopilot/responder"
	"echopilot/transcript"
)

const feedInterval = 250 * time.Millisecond

// ContextClearer resets the whole conversation state. Implemented by
// segmenter.Segmenter.
type ContextClearer interface {
	ClearContext()
}

// Server exposes two websocket endpoints: /ws/ingest, where capture
// producers push tagged binary audio chunks into the shared queue, and
// /ws/feed, where UI clients receive transcript/response snapshots and
// may issue clear/export commands.
type Server struct {
	addr     string
	queue    *capture.Queue
	store    *transcript.Store
	registry *responder.Registry
	exporter *export.Exporter
	clearer  ContextClearer
	upgrader websocket.Upgrader
	logger   *core.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex // per-conn write lock
}

func NewServer(cfg config.Config, queue *capture.Queue, store *transcript.Store, registry *responder.Registry, exporter *export.Exporter, clearer ContextClearer, logger *core.Logger) *Server {
	return &Server{
		addr:     cfg.ListenAddr,
		queue:    queue,
		store:    store,
		registry: registry,
		exporter: exporter,
		clearer:  clearer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger.With(map[string]interface{}{"component": "websocket"}),
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Run serves until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/ingest", s.handleIngest)
	mux.HandleFunc("/ws/feed", s.handleFeed)

	srv := &http.Server{Addr: s.addr, Handler: mux}
	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleIngest accepts binary audio frames from one capture producer.
// The source is selected by the ?source=you|speaker query parameter;
// each frame is stamped with its arrival time and pushed to the queue.
// Producers never block on the consumer.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	source := sourceFromQuery(r.URL.Query().Get("source"))
	if !source.Valid() {
		http.Error(w, "unknown source", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ingest upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.logger.Info("ingest connected", "source", string(source))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("ingest disconnected", "source", string(source), "error", err)
			return
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		s.queue.Push(core.CaptureChunk{
			Source: source,
			Data:   data,
			Time:   time.Now(),
		})
	}
}

func sourceFromQuery(q string) core.Source {
	switch q {
	case "you", "You":
		return core.SourceYou
	case "speaker", "Speaker":
		return core.SourceSpeaker
	default:
		return core.Source(q)
	}
}

// handleFeed registers a UI subscriber and processes its commands.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("feed upgrade failed", "error", err)
		return
	}

	writeLock := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeLock
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// Deliver the current state immediately so the client does not wait
	// for the next broadcast tick.
	if data, err := MarshalEnvelope(MessageTypeSnapshot, s.snapshot()); err == nil {
		s.write(conn, writeLock, data)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := UnmarshalEnvelope(data)
		if err != nil {
			s.sendError(conn, writeLock, err.Error())
			continue
		}
		s.handleCommand(conn, writeLock, env)
	}
}

func (s *Server) handleCommand(conn *websocket.Conn, writeLock *sync.Mutex, env Envelope) {
	switch env.Type {
	case MessageTypeClearContext:
		s.clearer.ClearContext()
		s.sendAck(conn, writeLock, env.Uid)
	case MessageTypeExport:
		var req ExportRequest
		if err := sonic.Unmarshal(env.Payload, &req); err != nil {
			s.sendError(conn, writeLock, "bad export payload: "+err.Error())
			return
		}
		var err error
		if req.Responses {
			err = s.exporter.SaveResponses(req.Path)
		} else {
			err = s.exporter.SaveConversation(req.Path, req.NewestFirst)
		}
		if err != nil {
			s.sendError(conn, writeLock, err.Error())
			return
		}
		s.sendAck(conn, writeLock, env.Uid)
	default:
		s.sendError(conn, writeLock, "unknown message type: "+string(env.Type))
	}
}

// broadcastLoop pushes a snapshot to every feed subscriber whenever the
// serialized state changes. It blocks on the complete-response signal
// with a short timeout, so a finished answer goes out immediately and
// streaming partials ride the poll cadence.
func (s *Server) broadcastLoop(ctx context.Context) {
	var lastSent []byte
	for {
		s.registry.WaitForComplete(feedInterval)
		if ctx.Err() != nil {
			return
		}

		snap := s.snapshot()
		// Time advances every cycle; fingerprint the rest of the payload.
		probe := snap
		probe.Time = time.Time{}
		fingerprint, err := sonic.Marshal(probe)
		if err != nil {
			s.logger.Error("snapshot marshal failed", "error", err)
			continue
		}
		if bytes.Equal(fingerprint, lastSent) {
			continue
		}
		data, err := MarshalEnvelope(MessageTypeSnapshot, snap)
		if err != nil {
			s.logger.Error("snapshot marshal failed", "error", err)
			continue
		}
		lastSent = fingerprint

		s.mu.Lock()
		conns := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
		for c, l := range s.clients {
			conns[c] = l
		}
		s.mu.Unlock()

		for conn, lock := range conns {
			s.write(conn, lock, data)
		}
	}
}

func (s *Server) snapshot() Snapshot {
	combined := s.store.Combined()
	messages := make([]SnapshotMessage, 0, len(combined))
	for _, rec := range combined {
		messages = append(messages, SnapshotMessage{
			Role:       rec.Source.Role(),
			Text:       rec.Text,
			Timestamp:  rec.Time,
			ResponseID: rec.ResponseID,
		})
	}
	snap := Snapshot{
		Transcript: s.store.Text(),
		Messages:   messages,
		Time:       time.Now(),
	}
	if latest, ok := s.registry.GetLatest(); ok {
		snap.LatestResponse = &latest
	} else {
		snap.Greeting = responder.InitialResponse
	}
	return snap
}

func (s *Server) write(conn *websocket.Conn, lock *sync.Mutex, data []byte) {
	lock.Lock()
	defer lock.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("feed write failed", "error", err)
	}
}

func (s *Server) sendAck(conn *websocket.Conn, lock *sync.Mutex, uid string) {
	if data, err := MarshalEnvelope(MessageTypeAck, map[string]string{"for": uid}); err == nil {
		s.write(conn, lock, data)
	}
}

func (s *Server) sendError(conn *websocket.Conn, lock *sync.Mutex, msg string) {
	if data, err := MarshalEnvelope(MessageTypeError, map[string]string{"message": msg}); err == nil {
		s.write(conn, lock, data)
	}
}
