package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"toursapp/internal/auth"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"user": userPayload(user),
		},
	})
}

type updateMeRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if req.Password != "" || req.PasswordConfirm != "" {
		s.fail(w, r, badRequest("This route is not for password updates. Please use /updateMyPassword."))
		return
	}
	if req.Email != nil && !validateEmail(*req.Email) {
		s.fail(w, r, badRequest("Invalid email address"))
		return
	}

	user := userFromContext(r.Context())
	updated, err := s.Users.UpdateProfile(r.Context(), user.ID, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			s.fail(w, r, conflict("A user with this email already exists"))
			return
		}
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"user": userPayload(updated),
		},
	})
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	ctx := r.Context()

	if err := s.Users.Deactivate(ctx, user.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	_ = s.Sessions.DeleteByUser(ctx, user.ID)
	auth.ClearAuthCookies(w, s.Config.TLS)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Users.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payload := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		payload = append(payload, userPayload(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"results": len(payload),
		"data": map[string]interface{}{
			"users": payload,
		},
	})
}

type createUserRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleCreateUser is the admin path: the account skips the verification
// email and is created already verified.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if req.Name == "" || req.Username == "" || !validateEmail(req.Email) {
		s.fail(w, r, badRequest("Name, username and a valid email are required"))
		return
	}
	if err := validatePassword(req.Password); err != nil {
		s.fail(w, r, badRequest(err.Error()))
		return
	}

	ctx := r.Context()
	secret, _, err := s.TOTP.Generate(req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.Users.Create(ctx, auth.CreateUserParams{
		Name:       req.Name,
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		TOTPSecret: secret,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			s.fail(w, r, conflict("A user with this email or username already exists"))
			return
		}
		s.fail(w, r, err)
		return
	}

	if err := s.Users.SetVerified(ctx, user.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	user.Verified = true

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"user": userPayload(user),
		},
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.Users.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		s.fail(w, r, notFound("No user for that ID"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"user": userPayload(user),
		},
	})
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if req.Email != nil && !validateEmail(*req.Email) {
		s.fail(w, r, badRequest("Invalid email address"))
		return
	}
	if req.Role != nil && *req.Role != auth.RoleAdmin && *req.Role != auth.RoleUser {
		s.fail(w, r, badRequest("Role must be admin or user"))
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")

	user, err := s.Users.UpdateProfile(ctx, id, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			s.fail(w, r, conflict("A user with this email already exists"))
			return
		}
		s.fail(w, r, err)
		return
	}
	if user == nil {
		s.fail(w, r, notFound("No user for that ID"))
		return
	}

	if req.Role != nil && *req.Role != user.Role {
		if err := s.Users.UpdateRole(ctx, id, *req.Role); err != nil {
			s.fail(w, r, err)
			return
		}
		user.Role = *req.Role
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"user": userPayload(user),
		},
	})
}

// handleDeleteUser deactivates rather than deletes; the row survives but
// is excluded from every query.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	user, err := s.Users.FindByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		s.fail(w, r, notFound("No user for that ID"))
		return
	}

	if err := s.Users.Deactivate(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	_ = s.Sessions.DeleteByUser(ctx, id)

	w.WriteHeader(http.StatusNoContent)
}
