package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"ocap-agent/internal/common/auth"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/validation"
	"ocap-agent/internal/models"
)

// decodeStruct reads a JSON body into dst and runs its validate tags.
func (s *Server) decodeStruct(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeValidation(w, validation.DecodeError(err))
		return false
	}
	if res := s.structs.Struct(dst); !res.Valid {
		writeValidation(w, res)
		return false
	}
	return true
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req models.UserCreate
	if !s.decodeStruct(w, r, &req) {
		return
	}
	ctx := r.Context()
	log := s.logger.WithFields(map[string]interface{}{"email": req.Email, "request_id": RequestID(ctx)})
	log.Info("registration attempt", nil)

	if _, err := s.deps.Users.GetByEmail(ctx, req.Email); err == nil {
		writeError(w, errors.NewEmailRegisteredError(req.Email))
		return
	} else if !isNotFound(err) {
		writeError(w, err)
		return
	}
	if _, err := s.deps.Users.GetByUsername(ctx, req.Username); err == nil {
		writeError(w, errors.NewUsernameTakenError(req.Username))
		return
	} else if !isNotFound(err) {
		writeError(w, err)
		return
	}

	hash, err := s.deps.Passwords.Hash(req.Password)
	if err != nil {
		log.Warn("registration rejected", map[string]interface{}{"reason": err.Error()})
		if stderrors.Is(err, auth.ErrPasswordTooShort) || stderrors.Is(err, auth.ErrPasswordTooLong) {
			writeError(w, errors.NewWeakPasswordError(err.Error()))
			return
		}
		writeError(w, errors.NewInternalError(err))
		return
	}

	user := &models.User{
		Email:          req.Email,
		Username:       req.Username,
		FullName:       req.FullName,
		HashedPassword: hash,
		IsActive:       true,
	}
	if err := s.deps.Users.Create(ctx, user); err != nil {
		log.Error("user creation failed", map[string]interface{}{"error": err.Error()})
		writeError(w, err)
		return
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.Welcome(ctx, user.Email, user.Username); err != nil {
			log.Warn("welcome email not sent", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("user registered", map[string]interface{}{"user_id": user.ID, "username": user.Username})
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLogin
	if !s.decodeStruct(w, r, &req) {
		return
	}
	ctx := r.Context()

	user, err := s.deps.Users.GetByUsernameOrEmail(ctx, req.Username)
	if err != nil && !isNotFound(err) {
		writeError(w, err)
		return
	}
	if user == nil || !s.deps.Passwords.Verify(user.HashedPassword, req.Password) || !user.IsActive {
		s.logger.Warn("failed login attempt", map[string]interface{}{
			"username":   req.Username,
			"request_id": RequestID(ctx),
		})
		writeError(w, errors.NewInvalidCredentialsError())
		return
	}

	token, err := s.deps.Tokens.Issue(user.Username, user.Email, user.ID)
	if err != nil {
		writeError(w, errors.NewInternalError(err))
		return
	}
	s.logger.Info("user logged in", map[string]interface{}{"user_id": user.ID})
	writeJSON(w, http.StatusOK, models.Token{AccessToken: token, TokenType: auth.TokenTypeBearer})
}

func isNotFound(err error) bool {
	stdErr, ok := errors.As(err)
	return ok && stdErr.Code == errors.ErrCodeRecordNotFound
}
