package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/codecollab-io/codecollab/internal/exec"
	"github.com/codecollab-io/codecollab/internal/relay"
	"github.com/codecollab-io/codecollab/internal/types"
	"github.com/gorilla/websocket"
)

type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (s *CollabApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *CollabApp) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
	})
}

func (s *CollabApp) execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	result, err := s.execClient.Execute(r.Context(), req.Code, req.Language)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, exec.ErrUnsupportedLanguage):
			errResp = NewBadRequestError()
		case errors.Is(err, exec.ErrNotConfigured):
			errResp = NewServiceUnavailableError()
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, result)
}

func (s *CollabApp) serveWs(w http.ResponseWriter, r *http.Request) {
	username, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := relay.NewClient(types.User{Username: username}, conn, s.relay, s.log)

	s.relay.RegisterClient(client)
	go client.Write()
	go client.Read()
}
