package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "callstats/internal/db"
)

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func userJSON(u dbpkg.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"created_at": nullableTime(FormatTimestamp(u.CreatedAt)),
		"updated_at": nullableTime(FormatTimestamp(u.UpdatedAt)),
	}
}

func nullableTime(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ListUsers(db *gorm.DB, rec CallRecorder, logger *slog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		users, err := dbpkg.ListUsers(ctx, db)
		if err != nil {
			logger.Error("error in get_users", "err", err)
			errResponse(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}

		record(rec, ctx, "/api/users")

		out := make([]map[string]any, 0, len(users))
		for _, u := range users {
			out = append(out, userJSON(u))
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"users":     out,
			"count":     len(out),
			"timestamp": timestamp(),
		})
	}
}

func CreateUser(db *gorm.DB, rec CallRecorder, logger *slog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req createUserRequest
		if len(ctx.PostBody()) == 0 || json.Unmarshal(ctx.PostBody(), &req) != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "Invalid JSON body")
			return
		}
		if req.Name == "" || req.Email == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "Name and email are required")
			return
		}

		user, err := dbpkg.CreateUser(ctx, db, req.Name, req.Email)
		switch {
		case errors.Is(err, dbpkg.ErrUserInvalid):
			errResponse(ctx, fasthttp.StatusBadRequest, "Name and email are required")
			return
		case errors.Is(err, dbpkg.ErrEmailTaken):
			errResponse(ctx, fasthttp.StatusConflict, "User with this email already exists")
			return
		case err != nil:
			logger.Error("error in create_user", "err", err)
			errResponse(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}

		record(rec, ctx, "/api/users")
		logger.Info("created new user", "email", user.Email)

		jsonResponse(ctx, fasthttp.StatusCreated, map[string]any{
			"message": "User created successfully",
			"user":    userJSON(*user),
		})
	}
}
