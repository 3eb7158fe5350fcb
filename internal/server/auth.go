// auth.go - Shared-password login and cookie sessions.
//
// Sessions live entirely in an encrypted, signed cookie. Each session carries
// the fingerprint of the password it was issued under, so rotating the
// password logs every client out on their next request.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionCookieName = "filedrop_session"

	keyAuthenticated = "authenticated"
	keyFingerprint   = "fingerprint"
	keyCSRF          = "csrf"

	msgSessionExpired = "Your session has expired. Please login again."
	msgInvalidLogin   = "Invalid password"
)

// PasswordFingerprint is a short, stable digest of the shared password.
func PasswordFingerprint(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])[:16]
}

// deriveKey expands the configured secret into an independent key per purpose.
func deriveKey(secret, purpose string, size int) ([]byte, error) {
	key := make([]byte, size)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("filedrop "+purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}

// Guard owns the session cookie and the two-state login machine.
type Guard struct {
	store        *sessions.CookieStore
	passwordHash [sha256.Size]byte
	fingerprint  string
}

// NewGuard builds a Guard for the given shared password and session secret.
func NewGuard(password, secret string, ttl time.Duration, secure bool) (*Guard, error) {
	hashKey, err := deriveKey(secret, "session-auth", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "session-enc", 32)
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.MaxAge(int(ttl / time.Second))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode

	return &Guard{
		store:        store,
		passwordHash: sha256.Sum256([]byte(password)),
		fingerprint:  PasswordFingerprint(password),
	}, nil
}

// session returns the request's session. A cookie that fails to decode
// (tampered, old key, expired) yields a fresh empty session.
func (g *Guard) session(r *http.Request) *sessions.Session {
	sess, _ := g.store.Get(r, sessionCookieName)
	return sess
}

// state reports whether the request is authenticated, and if not, whether it
// carried a session issued under a different password.
func (g *Guard) state(r *http.Request) (authenticated, expired bool) {
	sess := g.session(r)
	if ok, _ := sess.Values[keyAuthenticated].(bool); !ok {
		return false, false
	}
	fp, _ := sess.Values[keyFingerprint].(string)
	if !hmac.Equal([]byte(fp), []byte(g.fingerprint)) {
		return false, true
	}
	return true, false
}

// checkPassword compares digests so neither content nor length leaks through timing.
func (g *Guard) checkPassword(password string) bool {
	sum := sha256.Sum256([]byte(password))
	return hmac.Equal(sum[:], g.passwordHash[:])
}

// logIn moves the session to the authenticated state.
func (g *Guard) logIn(w http.ResponseWriter, r *http.Request) error {
	token, err := newCSRFToken()
	if err != nil {
		return err
	}
	sess := g.session(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Values[keyAuthenticated] = true
	sess.Values[keyFingerprint] = g.fingerprint
	sess.Values[keyCSRF] = token
	return sess.Save(r, w)
}

// clear drops everything but pending flashes.
func (g *Guard) clear(sess *sessions.Session) {
	delete(sess.Values, keyAuthenticated)
	delete(sess.Values, keyFingerprint)
	delete(sess.Values, keyCSRF)
}

// logOut deletes the session cookie outright.
func (g *Guard) logOut(w http.ResponseWriter, r *http.Request) error {
	sess := g.session(r)
	g.clear(sess)
	opts := *sess.Options
	opts.MaxAge = -1
	sess.Options = &opts
	return sess.Save(r, w)
}

// csrfToken returns the session's anti-forgery token.
func (g *Guard) csrfToken(r *http.Request) string {
	tok, _ := g.session(r).Values[keyCSRF].(string)
	return tok
}

func (g *Guard) validCSRF(r *http.Request, token string) bool {
	want := g.csrfToken(r)
	if want == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(strings.TrimSpace(token)), []byte(want))
}

// Flash severities.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot status message shown on the next rendered page.
type Flash struct {
	Text     string
	Severity string
}

func (g *Guard) addFlash(w http.ResponseWriter, r *http.Request, f Flash) error {
	sess := g.session(r)
	sess.AddFlash(f.Severity + ":" + f.Text)
	return sess.Save(r, w)
}

// popFlashes consumes pending flashes. The cookie is only rewritten when
// there was something to consume.
func (g *Guard) popFlashes(w http.ResponseWriter, r *http.Request) ([]Flash, error) {
	sess := g.session(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		sev, text, found := strings.Cut(s, ":")
		if !found || (sev != FlashSuccess && sev != FlashError) {
			sev, text = FlashError, s
		}
		out = append(out, Flash{Text: text, Severity: sev})
	}
	return out, sess.Save(r, w)
}

// requireAuth lets authenticated requests through and sends everything else
// to the login page. A session minted under an old password is cleared and
// the user told why.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, expired := s.auth.state(r)
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		if expired {
			s.metrics.RecordSessionExpired()
			s.reqLogger(r).Info("session expired", zap.String("reason", "password fingerprint mismatch"))
			sess := s.auth.session(r)
			s.auth.clear(sess)
			sess.AddFlash(FlashError + ":" + msgSessionExpired)
			if err := sess.Save(r, w); err != nil {
				s.reqLogger(r).Error("save session", zap.Error(err))
			}
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

// loginPage renders the password form, or skips it for a live session.
func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if ok, _ := s.auth.state(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	flashes, err := s.auth.popFlashes(w, r)
	if err != nil {
		s.reqLogger(r).Error("save session", zap.Error(err))
	}
	s.render(w, r, http.StatusOK, "login.html", pageData{Title: "Login", Flashes: flashes})
}

// loginSubmit checks the shared password. Failures re-render the form and
// never issue a session cookie.
func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	log := s.reqLogger(r)
	ip := clientIP(r)

	if !s.loginLimiter.allow(ip) {
		s.metrics.RecordLoginThrottled()
		log.Warn("login throttled", zap.String("ip", ip))
		s.render(w, r, http.StatusTooManyRequests, "login.html", pageData{
			Title:   "Login",
			Flashes: []Flash{{Text: "Too many login attempts. Please try again later.", Severity: FlashError}},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", pageData{
			Title:   "Login",
			Flashes: []Flash{{Text: "Malformed login request", Severity: FlashError}},
		})
		return
	}

	if !s.auth.checkPassword(r.PostFormValue("password")) {
		s.metrics.RecordLoginAttempt(false)
		log.Warn("login failed", zap.String("ip", ip))
		s.render(w, r, http.StatusUnauthorized, "login.html", pageData{
			Title:   "Login",
			Flashes: []Flash{{Text: msgInvalidLogin, Severity: FlashError}},
		})
		return
	}

	if err := s.auth.logIn(w, r); err != nil {
		log.Error("issue session", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordLoginAttempt(true)
	log.Info("login succeeded", zap.String("ip", ip))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.logOut(w, r); err != nil {
		s.reqLogger(r).Error("clear session", zap.Error(err))
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
