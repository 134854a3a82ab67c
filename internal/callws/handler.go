package callws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	ws "nhooyr.io/websocket"

	"voicedesk/agent/internal/auth"
	"voicedesk/agent/internal/config"
	"voicedesk/agent/internal/session"
	"voicedesk/agent/internal/store"
	"voicedesk/agent/internal/types"
)

// Message is the telephony-gateway frame, both directions. Inbound types:
// transcript_final, vad_start, tts_started, tts_stopped. Outbound: say,
// stop_tts.
type Message struct {
	Type        string         `json:"type"`
	TsMs        int64          `json:"ts_ms"`
	SessionID   string         `json:"session_id"`
	Seq         int64          `json:"seq"`
	CommandID   string         `json:"command_id,omitempty"`
	UtteranceID string         `json:"utterance_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type Server struct {
	Cfg   config.Config
	Store *store.Store
	Mgr   *session.Manager
	Reg   *Registry
}

func NewServer(cfg config.Config, st *store.Store, mgr *session.Manager, reg *Registry) *Server {
	return &Server{Cfg: cfg, Store: st, Mgr: mgr, Reg: reg}
}

func (s *Server) HandleCallWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	if s.Store.GetSession(sessionID) == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(authz, "Bearer ")
	if s.Cfg.Gateway.TokenSecret == "" {
		http.Error(w, "gateway auth not configured", http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateGatewayToken(s.Cfg.Gateway.TokenSecret, token, sessionID, time.Now(), s.Cfg.Gateway.TokenSkewSecs); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[callws] accept: %v", err)
		return
	}
	replaced := s.Reg.Replace(sessionID, c)
	if replaced {
		s.Store.AppendEvent(sessionID, "gateway_replaced", nil)
	}
	s.Store.AppendEvent(sessionID, "gateway_connected", nil)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Store.AppendEvent(sessionID, "gateway_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		s.dispatch(ctx, sessionID, msg)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(sessionID)
	s.Store.AppendEvent(sessionID, "gateway_disconnected", nil)
}

func (s *Server) dispatch(ctx context.Context, sessionID string, msg Message) {
	switch msg.Type {
	case "transcript_final":
		s.handleTranscript(ctx, sessionID, msg)
	case "vad_start":
		if s.Mgr.BargeIn(sessionID) {
			s.send(ctx, sessionID, Message{
				Type:      "stop_tts",
				TsMs:      time.Now().UnixMilli(),
				SessionID: sessionID,
				CommandID: uuid.New().String(),
			})
		}
	case "tts_started", "tts_stopped":
		s.Store.AppendEvent(sessionID, msg.Type, msg.Payload)
	default:
		s.Store.AppendEvent(sessionID, "gateway_msg_unknown", map[string]any{"type": msg.Type})
	}
}

func (s *Server) handleTranscript(ctx context.Context, sessionID string, msg Message) {
	in := types.TurnInput{
		Transcript: stringField(msg.Payload, "text"),
		Confidence: floatField(msg.Payload, "confidence"),
		TurnIndex:  int(msg.Seq),
	}
	if in.Transcript == "" {
		s.Store.AppendEvent(sessionID, "transcript_empty", nil)
		return
	}

	out, err := s.Mgr.Turn(ctx, sessionID, in)
	if err != nil {
		log.Printf("[callws] turn failed sid=%s: %v", sessionID, err)
		return
	}
	if out.Response == "" {
		return
	}
	s.send(ctx, sessionID, Message{
		Type:        "say",
		TsMs:        time.Now().UnixMilli(),
		SessionID:   sessionID,
		CommandID:   uuid.New().String(),
		UtteranceID: msg.UtteranceID,
		Payload: map[string]any{
			"text":  out.Response,
			"state": out.State,
		},
	})
}

func (s *Server) send(ctx context.Context, sessionID string, msg Message) {
	if err := s.Reg.SendJSON(ctx, sessionID, msg); err != nil {
		log.Printf("[callws] send %s sid=%s: %v", msg.Type, sessionID, err)
	}
}

func stringField(p map[string]any, key string) string {
	if p == nil {
		return ""
	}
	v, _ := p[key].(string)
	return v
}

func floatField(p map[string]any, key string) float64 {
	if p == nil {
		return 0
	}
	v, _ := p[key].(float64)
	return v
}
