package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"voicedesk/agent/internal/auth"
	"voicedesk/agent/internal/catalog"
	"voicedesk/agent/internal/config"
	"voicedesk/agent/internal/session"
	"voicedesk/agent/internal/store"
	"voicedesk/agent/internal/types"
)

type Handlers struct {
	cfg   config.Config
	store *store.Store
	mgr   *session.Manager
}

func NewHandlers(cfg config.Config, st *store.Store, mgr *session.Manager) *Handlers {
	return &Handlers{cfg: cfg, store: st, mgr: mgr}
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CallID string `json:"call_id"`
		Org    *struct {
			Name     string `json:"name"`
			Services string `json:"services"`
			Hours    string `json:"hours"`
			Location string `json:"location"`
			Greeting string `json:"greeting"`
		} `json:"org"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	var org *catalog.Organization
	if body.Org != nil {
		org = &catalog.Organization{
			Name:     body.Org.Name,
			Services: catalog.ParseServices(body.Org.Services),
			Hours:    body.Org.Hours,
			Location: body.Org.Location,
			Greeting: body.Org.Greeting,
		}
	}

	info, err := h.mgr.Init(body.CallID, org)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": info.ID,
		"call_id":    info.CallID,
		"org_name":   info.OrgName,
		"greeting":   h.greetingFor(org),
	})
}

func (h *Handlers) greetingFor(org *catalog.Organization) string {
	if org != nil && org.Greeting != "" {
		return org.Greeting
	}
	return h.cfg.Org.Greeting
}

func (h *Handlers) HandleTurn(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	var in types.TurnInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if in.Transcript == "" {
		http.Error(w, "missing transcript", http.StatusBadRequest)
		return
	}

	out, err := h.mgr.Turn(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) || errors.Is(err, session.ErrSessionClosed) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handlers) HandleEndSession(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	tel, err := h.mgr.Finalize(id)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			// Already finalized; report the stored telemetry if we have it.
			if stored, ok := h.store.GetTelemetry(id); ok {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "telemetry": stored})
				return
			}
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "telemetry": tel})
}

func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sess)
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	events := h.store.ListEvents(id)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": id,
		"events":     events,
	})
}

func (h *Handlers) HandleMintGatewayToken(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	if h.cfg.Gateway.TokenSecret == "" {
		http.Error(w, "gateway auth not configured", http.StatusBadRequest)
		return
	}
	exp := time.Now().Add(time.Duration(h.cfg.Gateway.TokenTTLMin) * time.Minute).Unix()
	token := auth.GenerateGatewayToken(h.cfg.Gateway.TokenSecret, id, exp)
	h.store.AppendEvent(id, "gateway_token_minted", nil)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token":   token,
		"expires": exp,
	})
}
