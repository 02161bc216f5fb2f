package bot

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// authMiddleware rejects upgrade requests that do not carry the configured
// access token. The token may come as "Authorization: Bearer <t>" (or the
// "Token <t>" form some gateways send) or as an access_token query
// parameter. An empty access token disables the check.
func (b *Bot) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := b.cfg.AccessToken
		if want == "" {
			next(w, r)
			return
		}

		got, ok := requestToken(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing access token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		next(w, r)
	}
}

func requestToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		for _, prefix := range []string{"Bearer ", "Token "} {
			if strings.HasPrefix(header, prefix) {
				return strings.TrimSpace(header[len(prefix):]), true
			}
		}
		return "", false
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
