package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chat-relay/auth"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/services"

	"github.com/gorilla/websocket"
)

// Handler exposes the HTTP surface of the service: auth endpoints, the
// chat read/write endpoints mirroring the routing core's operations, and
// the websocket upgrade for live sessions.
type Handler struct {
	log                  *slog.Logger
	authService          services.IAuthService
	chatService          services.IChatService
	issuer               auth.TokenIssuer
	upgrader             websocket.Upgrader
	connectionBufferSize int
}

func NewHandler(log *slog.Logger, authService services.IAuthService,
	chatService services.IChatService, issuer auth.TokenIssuer,
	connectionBufferSize int) *Handler {
	return &Handler{
		log:                  log,
		authService:          authService,
		chatService:          chatService,
		issuer:               issuer,
		upgrader:             websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		connectionBufferSize: connectionBufferSize,
	}
}

// Routes wires every endpoint. Everything under /api/chat/ requires a
// bearer token.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("GET /ws", h.serveWS)

	authed := http.NewServeMux()
	authed.HandleFunc("GET /api/chat/recent", h.recentChats)
	authed.HandleFunc("POST /api/chat/group", h.createGroup)
	authed.HandleFunc("DELETE /api/chat/group/{groupId}", h.deleteGroup)
	authed.HandleFunc("GET /api/chat/group/{groupId}/messages", h.groupMessages)
	authed.HandleFunc("POST /api/chat/message", h.sendGroupMessage)
	authed.HandleFunc("POST /api/chat/dm", h.sendDirectMessage)
	authed.HandleFunc("GET /api/chat/dm/user/{username}", h.directMessages)
	authed.HandleFunc("DELETE /api/chat/dm/user/{username}", h.deleteDirectChat)
	mux.Handle("/api/chat/", auth.Middleware(h.issuer, authed))

	return mux
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.ErrInvalidArgument)
		return
	}
	token, err := h.authService.Register(req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.ErrInvalidArgument)
		return
	}
	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

// serveWS authenticates the token query parameter and upgrades to a live
// session. The session registers itself and runs its pumps until the
// connection dies.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	claims, err := h.issuer.Validate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	session := NewSession(conn, claims.UserID, h.chatService, h.connectionBufferSize, h.log)
	session.Run(r.Context())
}

func (h *Handler) recentChats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	refs, err := h.chatService.ConversationList(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	type chatEntry struct {
		Key  string `json:"key"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	entries := make([]chatEntry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, chatEntry{Key: ref.Key, Name: ref.Name, Type: string(ref.Kind)})
	}
	h.writeJSON(w, http.StatusOK, entries)
}

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.ErrInvalidArgument)
		return
	}
	group, err := h.chatService.CreateGroup(req.Name, userID, req.Members)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": group.ID, "name": group.Name})
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.chatService.DeleteGroup(r.PathValue("groupId"), userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) groupMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	history, err := h.chatService.History(userID, domain.GroupKey(r.PathValue("groupId")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeHistory(w, history)
}

type sendGroupRequest struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

func (h *Handler) sendGroupMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req sendGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.ErrInvalidArgument)
		return
	}
	msg, err := h.chatService.SendGroup(r.Context(), userID, req.GroupID, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toPayload(msg))
}

type sendDirectRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

func (h *Handler) sendDirectMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req sendDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.ErrInvalidArgument)
		return
	}
	msg, err := h.chatService.SendDirect(r.Context(), userID, req.To, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toPayload(msg))
}

func (h *Handler) directMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	history, err := h.chatService.DirectHistory(userID, r.PathValue("username"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeHistory(w, history)
}

func (h *Handler) deleteDirectChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	count, err := h.chatService.DeleteDirect(userID, r.PathValue("username"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

func (h *Handler) writeHistory(w http.ResponseWriter, history []domain.Message) {
	payloads := make([]*MessagePayload, 0, len(history))
	for _, msg := range history {
		payloads = append(payloads, toPayload(msg))
	}
	h.writeJSON(w, http.StatusOK, payloads)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug("Response encoding failed", "error", err)
	}
}

// writeError maps the core's error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidCredentials), errors.Is(err, apperrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		status = http.StatusConflict
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
