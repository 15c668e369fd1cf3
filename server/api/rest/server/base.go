package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/api/rest/documents"
	"github.com/siteguard/siteguard/server/api/rest/middleware"
	"github.com/siteguard/siteguard/server/services"
)

type APIBase struct {
	logger.Log
	authorizationService services.AuthorizationService
}

func NewAPIBase(authorizationService services.AuthorizationService, log logger.Log) *APIBase {
	return &APIBase{
		authorizationService: authorizationService,
		Log:                  log,
	}
}

// JSON marshals 'v' to JSON, automatically escaping HTML and setting the
// Content-Type as application/json. Copied from chi/render.JSON and updated
// to log serialization errors.
func (a *APIBase) JSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		a.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if status, ok := r.Context().Value(render.StatusCtxKey).(int); ok {
		w.WriteHeader(status)
	}
	a.Tracef("JSON Response: %s", buf.String())
	w.Write(buf.Bytes())
}

// Error writes the specified error to the http response as a standard API
// error document. Errors are sanitized for public display before being
// written; the status code is inferred from the error. The error is logged
// at Warning level.
func (a *APIBase) Error(w http.ResponseWriter, r *http.Request, err error) {
	a.Warnf("Error in API call: %v", err)

	var gErr gerror.Error
	if !errors.As(err, &gErr) || gErr.Audience() != gerror.AudienceExternal {
		gErr = gerror.NewErrInternal()
	}
	doc := &documents.ErrorDocument{
		Code:           gErr.Code(),
		HTTPStatusCode: gErr.HTTPStatusCode(),
		Message:        gErr.Message(),
		Details:        make(map[gerror.DetailKey]interface{}),
	}
	for _, detail := range gErr.Details() {
		if detail.Audience() == gerror.AudienceExternal {
			doc.Details[detail.Key()] = detail.Value()
		}
	}
	r = r.WithContext(context.WithValue(r.Context(), render.StatusCtxKey, gErr.HTTPStatusCode()))
	a.JSON(w, r, doc)
}

// Created writes a 201 response with the created entity as the body.
func (a *APIBase) Created(w http.ResponseWriter, r *http.Request, data interface{}) {
	r = r.WithContext(context.WithValue(r.Context(), render.StatusCtxKey, http.StatusCreated))
	a.JSON(w, r, data)
}

// NoContent writes an empty 204 response.
func (a *APIBase) NoContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// MustAuthenticate returns the authenticated caller or writes a 401,
// returning false.
func (a *APIBase) MustAuthenticate(w http.ResponseWriter, r *http.Request) (models.UserID, bool) {
	userID, ok := middleware.CurrentUserID(r)
	if !ok {
		a.Error(w, r, gerror.NewErrUnauthorized("Unauthorized"))
		return models.UserID{}, false
	}
	return userID, true
}

// MustBeAuthorized checks that the caller holds the permission on the
// resource, writing the verbose denial (including the denied audit event)
// when they do not.
func (a *APIBase) MustBeAuthorized(w http.ResponseWriter, r *http.Request, userID models.UserID, resourceID models.ResourceID, permission models.Permission) bool {
	_, err := a.authorizationService.CheckOrError(r.Context(), userID, resourceID, permission)
	if err != nil {
		a.Error(w, r, err)
		return false
	}
	return true
}

// ParseListOptions reads limit/offset query parameters. Unparseable values
// fall back to the defaults.
func ParseListOptions(r *http.Request) models.ListOptions {
	opts := models.ListOptions{}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		opts.Offset = offset
	}
	return opts
}
