package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	errNoKey      = errors.New("missing API key")
	errBadScheme  = errors.New("invalid Authorization header format")
	errKeyInvalid = errors.New("invalid API key")
)

// keyMatches compares in constant time. An empty configured key never matches.
func keyMatches(provided, configured string) bool {
	if configured == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}

// requestKey reads the key from "Authorization: Bearer <key>", falling back to
// a ?key= query parameter for EventSource clients, which cannot set headers.
func requestKey(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return "", errBadScheme
		}
		if key = strings.TrimSpace(key); key == "" {
			return "", errNoKey
		}
		return key, nil
	}
	if key := r.URL.Query().Get("key"); key != "" {
		return key, nil
	}
	return "", errNoKey
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := requestKey(r)
		if err == nil && !keyMatches(key, s.config.APIKey) {
			err = errKeyInvalid
		}
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="vitrine"`)
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
