// internal/handlers/http.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/auth"
	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

// HealthHandler reports process liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GuestTokenHandler mints a guest profile and a session token for it. Clients
// present the token on the websocket upgrade.
func GuestTokenHandler(logger *logrus.Logger, signer *auth.Signer, store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			DisplayName string `json:"display_name"`
			AvatarURL   string `json:"avatar_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if body.DisplayName == "" {
			body.DisplayName = "Guest"
		}

		u := &models.User{
			ID:          uuid.New(),
			DisplayName: body.DisplayName,
			AvatarURL:   body.AvatarURL,
			Level:       1,
		}
		if err := store.UpsertUser(r.Context(), u); err != nil {
			logger.Warnf("failed to create guest profile: %v", err)
			http.Error(w, "failed to create profile", http.StatusInternalServerError)
			return
		}

		token, err := signer.Issue(u.ID)
		if err != nil {
			logger.Warnf("failed to issue token for %v: %v", u.ID, err)
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token": token,
			"user": map[string]interface{}{
				"id":           u.ID.String(),
				"display_name": u.DisplayName,
				"avatar_url":   u.AvatarURL,
				"level":        u.Level,
			},
		})
	}
}
