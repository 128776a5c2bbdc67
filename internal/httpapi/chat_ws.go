package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/intake/internal/dialog"
	"github.com/ent0n29/intake/internal/engine"
	"github.com/ent0n29/intake/internal/protocol"
	"github.com/ent0n29/intake/internal/records"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
)

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	externalID, err := strconv.ParseInt(strings.TrimSpace(q.Get("external_id")), 10, 64)
	if err != nil || externalID <= 0 {
		respondError(w, http.StatusBadRequest, "missing_external_id", "query parameter external_id is required")
		return
	}
	profile := records.Profile{
		ExternalID: externalID,
		Username:   strings.TrimSpace(q.Get("username")),
		FirstName:  strings.TrimSpace(q.Get("first_name")),
		LastName:   strings.TrimSpace(q.Get("last_name")),
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	log := s.logger.With().Int64("external_id", externalID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug().Err(err).Msg("websocket write failed")
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	send := func(msg any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- msg:
			return true
		}
	}

	send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "session_ready"})

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			if !send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			}) {
				break
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		var (
			seq   int
			reply dialog.Reply
			herr  error
		)
		switch m := parsed.(type) {
		case protocol.ClientMessage:
			seq = m.Seq
			reply, herr = s.dialog.Handle(ctx, profile, m.Text)
		case protocol.ClientControl:
			seq = m.Seq
			reply, herr = s.dialog.HandleAction(ctx, profile, m.Action)
		default:
			continue
		}
		if !send(botReply(seq, reply)) {
			break
		}
		if herr != nil {
			log.Warn().Err(herr).Msg("chat message failed")
			if !send(errorEventFor(seq, herr)) {
				break
			}
		}
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func botReply(seq int, reply dialog.Reply) protocol.BotReply {
	out := protocol.BotReply{
		Type:    protocol.TypeBotReply,
		Seq:     seq,
		Text:    reply.Text,
		Actions: reply.Actions,
	}
	if p := reply.Progress; p != nil {
		out.Progress = &protocol.Progress{Filled: p.Filled, Total: p.Total, Percent: p.Percent}
		if p.Pending != nil {
			out.Progress.Pending = p.Pending.Name
		}
	}
	return out
}

func errorEventFor(seq int, err error) protocol.ErrorEvent {
	ev := protocol.ErrorEvent{
		Type:   protocol.TypeErrorEvent,
		Seq:    seq,
		Code:   "internal_error",
		Detail: "internal error",
	}
	var serr *engine.StorageError
	if errors.As(err, &serr) {
		ev.Code = "storage_unavailable"
		ev.Detail = "storage unavailable"
		ev.Retryable = serr.Retryable
	}
	return ev
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.BotReply:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
