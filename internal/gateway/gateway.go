// Package gateway exposes the assistant over a websocket: clients get
// every status-channel change pushed as JSON and can send the same
// commands the unix control socket accepts.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"

	"aria/internal/status"
)

// Command is one client request.
type Command struct {
	Cmd string `json:"cmd"`
	Arg string `json:"arg,omitempty"`
}

// Push is one server-to-client message. Kind is "status" for channel
// updates, "error" or "ok" for command replies.
type Push struct {
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Cmd   string `json:"cmd,omitempty"`
	Error string `json:"error,omitempty"`
}

// Runtime is the slice of the core loop the gateway drives.
type Runtime interface {
	Wake()
	SetMic(on bool)
	Submit(text string)
}

// Auth is the slice of the auth manager the gateway drives.
type Auth interface {
	Signup(ctx context.Context, username string) error
	Login(ctx context.Context, username string) error
	Logout(ctx context.Context) error
}

type Server struct {
	ch       *status.Channel
	rt       Runtime
	auth     Auth
	upgrader ws.Upgrader
}

func NewServer(ch *status.Channel, rt Runtime, auth Auth) *Server {
	return &Server{
		ch: ch,
		rt: rt,
		auth: auth,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local desktop clients only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// ListenAndServe blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info("Gateway listening", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	log.Info("Gateway client connected", "remote", r.RemoteAddr)

	out := make(chan Push, 64)
	done := make(chan struct{})

	go s.writePump(conn, out, done)
	s.snapshot(out)

	events := s.ch.Subscribe()
	defer s.ch.Unsubscribe(events)
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.push(out, Push{Kind: "status", Field: string(ev.Field), Value: ev.Value})
			}
		}
	}()

	s.readLoop(r.Context(), conn, out)
	close(done)
}

func (s *Server) readLoop(ctx context.Context, conn *ws.Conn, out chan<- Push) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseAbnormalClosure) {
				log.Warn("Gateway read failed", "err", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.push(out, Push{Kind: "error", Error: "bad command payload"})
			continue
		}

		if err := s.dispatch(ctx, cmd); err != nil {
			s.push(out, Push{Kind: "error", Cmd: cmd.Cmd, Error: err.Error()})
			continue
		}
		s.push(out, Push{Kind: "ok", Cmd: cmd.Cmd})
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Cmd {
	case "mic":
		// A bare mic command arms for one utterance; "on"/"off" drive
		// the persistent manual toggle.
		switch cmd.Arg {
		case "on":
			s.rt.SetMic(true)
		case "off":
			s.rt.SetMic(false)
		default:
			s.rt.Wake()
		}
		return nil
	case "query":
		if cmd.Arg == "" {
			return errors.New("query requires text")
		}
		s.rt.Submit(cmd.Arg)
		return nil
	case "wake":
		enable := cmd.Arg != "off"
		s.ch.SetWakeEnabled(enable)
		if enable {
			s.ch.SetStatus(status.Available)
		} else {
			s.ch.SetStatus(status.WakeWordDisabled)
		}
		return nil
	case "signup":
		if cmd.Arg == "" {
			return errors.New("signup requires a username")
		}
		return s.auth.Signup(ctx, cmd.Arg)
	case "login":
		if cmd.Arg == "" {
			return errors.New("login requires a username")
		}
		return s.auth.Login(ctx, cmd.Arg)
	case "logout":
		return s.auth.Logout(ctx)
	default:
		return errors.New("unknown command: " + cmd.Cmd)
	}
}

// snapshot sends the current channel state so clients render without
// waiting for the next change.
func (s *Server) snapshot(out chan<- Push) {
	s.push(out, Push{Kind: "status", Field: string(status.FieldStatus), Value: s.ch.Status()})
	s.push(out, Push{Kind: "status", Field: string(status.FieldLastText), Value: s.ch.LastText()})
	s.push(out, Push{Kind: "status", Field: string(status.FieldImageRequest), Value: s.ch.ImageRequest()})
}

func (s *Server) push(out chan<- Push, p Push) {
	select {
	case out <- p:
	default:
		// Slow client; drop rather than stall the status fan-out.
	}
}

func (s *Server) writePump(conn *ws.Conn, out <-chan Push, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case p := <-out:
			data, err := json.Marshal(p)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		}
	}
}
