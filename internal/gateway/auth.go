package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "none" | "bearer" | "query"
	Reason string `json:"reason,omitempty"`
}

// Authorize checks the request's credentials against token. An empty token
// disables authentication. Browsers cannot set headers on websocket
// upgrades, so a ?token= query parameter is accepted as well.
func Authorize(token string, r *http.Request) AuthResult {
	if token == "" {
		return AuthResult{OK: true, Method: "none"}
	}

	method := "bearer"
	got, found := bearerToken(r.Header.Get("Authorization"))
	if !found {
		method = "query"
		got = r.URL.Query().Get("token")
	}
	if got == "" {
		return AuthResult{OK: false, Reason: "token required"}
	}
	if !safeEqual(got, token) {
		return AuthResult{OK: false, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true, Method: method}
}

func bearerToken(header string) (string, bool) {
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

// requireAuth rejects requests without a valid token and counts failures
// against the caller's address.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		res := Authorize(s.token, r)
		if !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Str("reason", res.Reason).Msg("unauthorized")
			w.Header().Set("WWW-Authenticate", `Bearer realm="subagents"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
