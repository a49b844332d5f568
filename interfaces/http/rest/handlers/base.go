// Package handlers holds the REST handlers. Each handler translates the
// request into a command or query, sends it over the bus and renders the
// result.
package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"canvas-backend/pkg/auth"
	pkgerrors "canvas-backend/pkg/errors"
)

// base carries what every handler needs
type base struct {
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func (b base) userID(r *http.Request) (string, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil || user.UserID == "" {
		return "", false
	}
	return user.UserID, true
}

// requireUser writes a 401 when the request carries no identity
func (b base) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := b.userID(r)
	if !ok {
		b.errors.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
	}
	return userID, ok
}
