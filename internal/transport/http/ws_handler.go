package http

import (
	"bufio"
	"context"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/guestbook-server/internal/core"
	"github.com/vovakirdan/guestbook-server/internal/proto"
)

const (
	// ReloadPath is where browsers subscribe to template reloads.
	ReloadPath = "/ws/reload"

	wsWriteTimeout = 5 * time.Second
)

// ReloadWSHandler pushes template reload events to browsers over WebSocket.
// It is served beside the gin engine, not through it, because gin's writer
// refuses to hijack once the 101 status is set.
type ReloadWSHandler struct {
	hub *core.ReloadHub
	log *zerolog.Logger
}

// NewReloadWSHandler builds a new live-reload handler.
func NewReloadWSHandler(hub *core.ReloadHub, logger *zerolog.Logger) *ReloadWSHandler {
	return &ReloadWSHandler{hub: hub, log: logger}
}

// ServeHTTP upgrades the connection and streams reload events until either
// side goes away.
// GET /ws/reload
func (h *ReloadWSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	rec := &statusRecorder{ResponseWriter: w}
	conn, err := websocket.Accept(rec, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().
			Err(err).
			Str("path", r.URL.Path).
			Int("status", rec.Status()).
			Str("client_ip", clientIP(r)).
			Msg("ws upgrade rejected")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	h.log.Info().
		Str("path", r.URL.Path).
		Int("status", rec.Status()).
		Str("client_ip", clientIP(r)).
		Msg("reload client connected")

	sub, err := h.hub.Subscribe(uuid.NewString())
	if err != nil {
		_ = h.write(r.Context(), conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: "unavailable", Msg: err.Error()},
		})
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.Unsubscribe(sub)

	// The browser never sends anything; CloseRead notices when it leaves.
	ctx := conn.CloseRead(r.Context())

	if err := h.write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventHello,
		Data:  proto.HelloData{ClientID: sub.ID},
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closing")
			return
		case ev, ok := <-sub.Events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, reloadOutbound(ev)); err != nil {
				return
			}
		}
	}
}

func (h *ReloadWSHandler) write(ctx context.Context, conn *websocket.Conn, msg proto.Outbound) error {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	if err := wsjson.Write(wctx, conn, msg); err != nil {
		h.log.Debug().Err(err).Str("event", msg.Event).Msg("write ws event")
		return err
	}
	return nil
}

func reloadOutbound(ev core.ReloadEvent) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventReload,
		Data: proto.ReloadData{
			Path: ev.Path,
			TS:   ev.At.Unix(),
		},
	}
}

// statusRecorder remembers the status written during the upgrade. Hijack is
// passed through so websocket.Accept can take over the connection.
type statusRecorder struct {
	stdhttp.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return stdhttp.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() stdhttp.ResponseWriter {
	return r.ResponseWriter
}

// Status reports the written status, 200 if none was set explicitly.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return stdhttp.StatusOK
	}
	return r.status
}

func clientIP(r *stdhttp.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
