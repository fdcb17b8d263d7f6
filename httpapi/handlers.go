package httpapi

import (
	"net/http"

	"github.com/praxisauth/identity"
)

type signupRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Name     string          `json:"name"`
	Tier     identity.Tier   `json:"tier,omitempty"`
	Source   identity.Source `json:"source,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	identity.TokenPair
	User *identity.UserProfile `json:"user,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	pair, profile, err := s.engine.Signup(r.Context(), identity.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Tier:     req.Tier,
		Source:   req.Source,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, tokenResponse{TokenPair: *pair, User: profile})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	pair, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{TokenPair: *pair})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	pair, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{TokenPair: *pair})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	if err := s.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	if _, err := s.engine.LogoutAll(r.Context(), claims.Subject); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	profile, err := s.engine.UserProfileByID(r.Context(), claims.Subject)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	jwks, err := s.engine.JWKS(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, jwks)
}

type crossDomainIssueRequest struct {
	Target identity.Target `json:"target"`
}

type crossDomainIssueResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type crossDomainRedeemRequest struct {
	Token  string          `json:"token"`
	Target identity.Target `json:"target"`
}

func (s *Server) handleCrossDomainIssue(w http.ResponseWriter, r *http.Request) {
	var req crossDomainIssueRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	claims := claimsFrom(r.Context())
	token, err := s.engine.IssueCrossDomain(r.Context(), claims.Subject, req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, crossDomainIssueResponse{
		Token:     token,
		ExpiresIn: int64(s.engine.Config().CrossDomain.TTL.Seconds()),
	})
}

func (s *Server) handleCrossDomainRedeem(w http.ResponseWriter, r *http.Request) {
	var req crossDomainRedeemRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	profile, err := s.engine.RedeemCrossDomain(r.Context(), req.Token, req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, profile)
}

type emailChangeRequest struct {
	NewEmail string `json:"new_email"`
}

type emailChangeResponse struct {
	ConfirmationToken string `json:"confirmation_token"`
}

type emailConfirmRequest struct {
	Token string `json:"token"`
}

// handleEmailChange returns the confirmation token to the caller, which is
// expected to deliver it out of band. The engine never sends mail.
func (s *Server) handleEmailChange(w http.ResponseWriter, r *http.Request) {
	var req emailChangeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	claims := claimsFrom(r.Context())
	token, err := s.engine.RequestEmailChange(r.Context(), claims.Subject, req.NewEmail)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, emailChangeResponse{ConfirmationToken: token})
}

func (s *Server) handleEmailConfirm(w http.ResponseWriter, r *http.Request) {
	var req emailConfirmRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, "malformed request body")
		return
	}

	profile, err := s.engine.ConfirmEmailChange(r.Context(), req.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, profile)
}
