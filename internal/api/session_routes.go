package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// GET /v1/session
func (s *Server) handleSessionCurrent(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Current()
	if err != nil {
		s.fail(w, r, err, "session lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /v1/session/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /v1/session/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err, "signup failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type oauthRequest struct {
	// Hint is the email (google) or username (github) the mock provider signs in.
	Hint string `json:"hint"`
}

// POST /v1/session/oauth/{provider}
func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	var req oauthRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.SignInWith(r.Context(), mux.Vars(r)["provider"], req.Hint)
	if err != nil {
		s.fail(w, r, err, "sign-in failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// POST /v1/session/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Refresh(r.Context())
	if err != nil {
		s.fail(w, r, err, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// POST /v1/session/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.fail(w, r, err, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
