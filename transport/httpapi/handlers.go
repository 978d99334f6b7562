package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/middleware"
)

const maxBodyBytes = 1 << 20

type registerBody struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	PhoneCountryCode string `json:"phoneCountryCode"`
	PhoneNumber      string `json:"phoneNumber"`
	AddressLine1     string `json:"addressLine1"`
	City             string `json:"city"`
	State            string `json:"state"`
	ZipCode          string `json:"zipCode"`
	Country          string `json:"country"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type setPasswordBody struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type codeBody struct {
	Code string `json:"code"`
}

// required collects messages for blank fields, first message per field wins.
type required map[string]string

func (f required) check(field, value, message string) {
	if strings.TrimSpace(value) == "" {
		if _, ok := f[field]; !ok {
			f[field] = message
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeValidation(w, map[string]string{"body": "Malformed JSON request body"})
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !s.decode(w, r, &body) {
		return
	}
	missing := required{}
	missing.check("name", body.Name, "Name is required")
	missing.check("email", body.Email, "Email is required")
	missing.check("password", body.Password, "Password is required")
	if len(missing) > 0 {
		s.writeValidation(w, missing)
		return
	}

	result, err := s.engine.Register(r.Context(), linkauth.RegisterRequest{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
		Profile: linkauth.Profile{
			PhoneCountryCode: body.PhoneCountryCode,
			PhoneNumber:      body.PhoneNumber,
			AddressLine1:     body.AddressLine1,
			City:             body.City,
			State:            body.State,
			ZipCode:          body.ZipCode,
			Country:          body.Country,
		},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !s.decode(w, r, &body) {
		return
	}
	missing := required{}
	missing.check("email", body.Email, "Email is required")
	missing.check("password", body.Password, "Password is required")
	if len(missing) > 0 {
		s.writeValidation(w, missing)
		return
	}

	result, err := s.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !s.decode(w, r, &body) {
		return
	}
	missing := required{}
	missing.check("refreshToken", body.RefreshToken, "Refresh token is required")
	if len(missing) > 0 {
		s.writeValidation(w, missing)
		return
	}

	result, err := s.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !s.decode(w, r, &body) {
		return
	}
	missing := required{}
	missing.check("code", body.Code, "Code is required")
	if len(missing) > 0 {
		s.writeValidation(w, missing)
		return
	}

	result, err := s.engine.ExchangeOAuthCode(r.Context(), body.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, r, linkauth.ErrUnauthorized)
		return
	}
	var body setPasswordBody
	if !s.decode(w, r, &body) {
		return
	}
	missing := required{}
	missing.check("password", body.Password, "Password is required")
	missing.check("confirmPassword", body.ConfirmPassword, "Confirm password is required")
	if len(missing) > 0 {
		s.writeValidation(w, missing)
		return
	}

	result, err := s.engine.SetPassword(r.Context(), principal.AccountID, body.Password, body.ConfirmPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, r, linkauth.ErrUnauthorized)
		return
	}
	if err := s.engine.Logout(r.Context(), principal.AccountID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
