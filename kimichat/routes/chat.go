package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"kimichat/kimichat/config"
	"kimichat/kimichat/controllers"
	"kimichat/kimichat/middlewares"
	"kimichat/kimichat/utils/logging"
	"kimichat/kimichat/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func ChatRoutes(ctrl *controllers.ChatController, cfg config.Config) chi.Router {
	r := chi.NewRouter()

	// GET /chat/ : configuration status
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Status())
	})

	r.Group(func(gr chi.Router) {
		// demo mode answers 503 before the visitor gate can answer 401
		gr.Use(readyGate(ctrl))
		gr.Use(middlewares.AuthMiddleware(cfg))
		// POST /chat/ : relay a conversation, JSON or event stream
		gr.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req types.ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeRelayError(w, controllers.InvalidBody(err))
				return
			}
			if req.Stream || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
				streamChat(w, r, ctrl, req, cfg.HeartbeatInterval)
				return
			}
			resp, err := ctrl.Chat(r.Context(), req)
			if err != nil {
				writeRelayError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})
	})

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")
		wsChat(r.Context(), conn, ctrl, cfg)
	})
	return r
}

func readyGate(ctrl *controllers.ChatController) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ctrl.Ready(); err != nil {
				writeRelayError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func streamChat(w http.ResponseWriter, r *http.Request, ctrl *controllers.ChatController, req types.ChatRequest, heartbeat time.Duration) {
	es, ok := newEventStream(w)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: "Streaming not supported"})
		return
	}
	ctx := r.Context()

	ch, errCh, err := ctrl.ChatStream(ctx, req)
	if err != nil {
		writeRelayError(w, err)
		return
	}

	es.open()
	defer es.abort()

	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logging.AppLogger.Info("stream consumer disconnected", zap.Error(ctx.Err()))
			return
		case <-tick:
			if err := es.comment("keep-alive"); err != nil {
				logging.AppLogger.Info("stream heartbeat write failed", zap.Error(err))
				return
			}
		case delta, ok := <-ch:
			if !ok {
				if err := <-errCh; err != nil {
					re := controllers.AsRelayError(err)
					_ = es.data(types.StreamChunk{Error: re.Message})
					return
				}
				if err := es.finish(); err != nil {
					logging.AppLogger.Info("stream done write failed", zap.Error(err))
				}
				return
			}
			if err := es.data(types.StreamChunk{Content: delta}); err != nil {
				logging.AppLogger.Info("stream write failed, consumer gone", zap.Error(err))
				return
			}
		}
	}
}

func wsChat(ctx context.Context, conn *websocket.Conn, ctrl *controllers.ChatController, cfg config.Config) {
	var input types.WSRequest
	if err := wsjson.Read(ctx, conn, &input); err != nil {
		var ce websocket.CloseError
		if !errors.As(err, &ce) {
			_ = wsjson.Write(ctx, conn, types.WSFrame{Error: "invalid json", Status: http.StatusBadRequest})
		}
		return
	}

	if err := ctrl.Ready(); err != nil {
		writeWSRelayError(ctx, conn, err)
		return
	}
	if cfg.JWTSecret != "" {
		visitorID, err := middlewares.ParseVisitorToken(cfg, input.Token)
		if err != nil {
			_ = wsjson.Write(ctx, conn, types.WSFrame{
				Error:  "Visitor token required",
				Status: http.StatusUnauthorized,
				Code:   middlewares.CodeVisitorTokenRequired,
			})
			conn.Close(websocket.StatusPolicyViolation, "invalid token")
			return
		}
		ctx = middlewares.WithVisitorID(ctx, visitorID)
	}

	ch, errCh, err := ctrl.ChatStream(ctx, input.ChatRequest)
	if err != nil {
		writeWSRelayError(ctx, conn, err)
		return
	}

	for delta := range ch {
		if err := wsjson.Write(ctx, conn, types.WSFrame{Content: delta}); err != nil {
			logging.AppLogger.Info("websocket write failed, consumer gone", zap.Error(err))
			return
		}
	}
	if err := <-errCh; err != nil {
		re := controllers.AsRelayError(err)
		_ = wsjson.Write(ctx, conn, types.WSFrame{Error: re.Message, Status: re.Status()})
		conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = wsjson.Write(ctx, conn, types.WSFrame{Done: true})
	conn.Close(websocket.StatusNormalClosure, "")
}

func writeWSRelayError(ctx context.Context, conn *websocket.Conn, err error) {
	re := controllers.AsRelayError(err)
	_ = wsjson.Write(ctx, conn, types.WSFrame{Error: re.Message, Status: re.Status(), IsDemo: re.Kind == controllers.KindDemo})
	conn.Close(websocket.StatusPolicyViolation, string(re.Kind))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRelayError(w http.ResponseWriter, err error) {
	re := controllers.AsRelayError(err)
	if re.Kind == controllers.KindInternal {
		logging.ErrorLogger.Error("chat relay failed", zap.Error(err))
	}
	writeJSON(w, re.Status(), types.ErrorResponse{Error: re.Message, IsDemo: re.Kind == controllers.KindDemo})
}
