// Package observer streams the notification HUD over a websocket.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lootsweep.ai/internal/protocol"
	"lootsweep.ai/internal/sim/pickup"
)

// Source is the runtime side of the stream. *pickup.Runtime implements it.
type Source interface {
	HUDJoin() chan<- pickup.HUDJoinRequest
	HUDSubscribe() chan<- pickup.HUDSubscribeRequest
	HUDLeave() chan<- string
	Metrics() pickup.Metrics
	TickRateHz() int
}

type Server struct {
	src Source
	log *log.Logger

	// AllowRemote disables the loopback check.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(src Source, logger *log.Logger) *Server {
	return &Server{
		src: src,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		m := s.src.Metrics()
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			Tick:            m.Tick,
			TickRateHz:      s.src.TickRateHz(),
			SessionID:       m.SessionID,
			Metrics: protocol.HUDMetrics{
				Active:         m.Active,
				CacheLen:       m.CacheLen,
				ProcessedLen:   m.ProcessedLen,
				ScanIntervalMS: m.ScanIntervalMS,
				TransfersTotal: m.TransfersTotal,
				BlockedTotal:   m.BlockedTotal,
			},
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, reason := decodeSubscribe(msg)
		if reason != "" {
			writeError(conn, protocol.ErrProtoBadRequest, reason)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 8)

		select {
		case s.src.HUDJoin() <- pickup.HUDJoinRequest{SessionID: sid, Out: out, EveryTicks: sub.EveryTicks}:
		default:
			writeError(conn, protocol.ErrBusy, "server busy")
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.src.HUDLeave() <- sid:
			default:
				// Runtime is stopping; nothing else to do.
			}
		}()
		if s.log != nil {
			s.log.Printf("hud subscriber %s joined every=%d", sid, sub.EveryTicks)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, reason := decodeSubscribe(msg)
			if reason != "" {
				continue
			}
			select {
			case s.src.HUDSubscribe() <- pickup.HUDSubscribeRequest{SessionID: sid, EveryTicks: sub.EveryTicks}:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// decodeSubscribe returns a non-empty reason when msg is not a valid SUBSCRIBE.
func decodeSubscribe(msg []byte) (protocol.SubscribeMsg, string) {
	var sub protocol.SubscribeMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return sub, "bad json"
	}
	if base.Type != protocol.TypeSubscribe {
		return sub, "expected SUBSCRIBE"
	}
	if base.ProtocolVersion != protocol.Version {
		return sub, "bad protocol_version"
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, "bad subscribe"
	}
	if sub.EveryTicks < 0 {
		sub.EveryTicks = 0
	}
	return sub, ""
}

func writeError(conn *websocket.Conn, code, message string) {
	b, _ := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
