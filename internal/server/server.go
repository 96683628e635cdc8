// Package server exposes the campus activity API over HTTP. Every response,
// success or failure, is wrapped in the {code, message, data} envelope the
// console client expects; code 0 means success, non-zero codes carry the
// failure message.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"campusline/internal/engine"
	"campusline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type envelopeBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type envelopeOutput struct {
	Body envelopeBody
}

func success(data any) *envelopeOutput {
	return &envelopeOutput{Body: envelopeBody{Code: 0, Message: "success", Data: data}}
}

// apiError models the failure envelope. The application code is the HTTP
// status scaled by 1000, matching the backend convention the console's
// client understands.
type apiError struct {
	status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Code: status * 1000, Message: message}
}

// New returns an HTTP handler exposing the campus activity API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Campusline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerActivities(group, cfg.Engine)
	registerSignups(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerClasses(group, cfg.Engine)

	return router, nil
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, msg)
	}
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "required"),
		strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "must"),
		strings.Contains(lowered, "before"):
		return newAPIError(http.StatusBadRequest, msg)
	default:
		// business rule rejections and storage failures both surface their
		// message; the client treats any non-zero code uniformly
		return newAPIError(http.StatusInternalServerError, msg)
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*envelopeOutput, error) {
		return success(map[string]string{"status": "ok"}), nil
	})
}

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "List activities",
	}, func(ctx context.Context, _ *struct{}) (*envelopeOutput, error) {
		activities, err := e.ListActivities(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return success(activities), nil
	})

	type createActivityInput struct {
		Body struct {
			Name        string    `json:"name"`
			Description string    `json:"description,omitempty"`
			Location    string    `json:"location,omitempty"`
			StartTime   time.Time `json:"startTime"`
			EndTime     time.Time `json:"endTime"`
			SignupStart time.Time `json:"signupStart"`
			SignupEnd   time.Time `json:"signupEnd"`
			LeaderID    string    `json:"leader_id,omitempty"`
			Budget      float64   `json:"budget,omitempty"`
			Status      string    `json:"status,omitempty"`
			MaxPeople   int       `json:"maxPeople"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "create-activity",
		Method:      http.MethodPost,
		Path:        "/activities",
		Summary:     "Create activity",
	}, func(ctx context.Context, input *createActivityInput) (*envelopeOutput, error) {
		b := input.Body
		_, err := e.CreateActivity(ctx, engine.ActivityCreateOptions{
			Name:        b.Name,
			Description: b.Description,
			Location:    b.Location,
			StartTime:   b.StartTime,
			EndTime:     b.EndTime,
			SignupStart: b.SignupStart,
			SignupEnd:   b.SignupEnd,
			LeaderID:    b.LeaderID,
			Budget:      b.Budget,
			Status:      b.Status,
			MaxPeople:   b.MaxPeople,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return success(nil), nil
	})

	type deleteActivityInput struct {
		Body struct {
			ActivityID int64 `json:"activityId"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "delete-activity",
		Method:      http.MethodDelete,
		Path:        "/activities",
		Summary:     "Delete activity",
	}, func(ctx context.Context, input *deleteActivityInput) (*envelopeOutput, error) {
		if err := e.DeleteActivity(ctx, input.Body.ActivityID); err != nil {
			return nil, handleError(err)
		}
		return success(nil), nil
	})

	type changeStatusInput struct {
		Body struct {
			ActivityID int64  `json:"activityId"`
			Status     string `json:"status" enum:"pending,active,completed,cancelled"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "change-activity-status",
		Method:      http.MethodPut,
		Path:        "/activities/status",
		Summary:     "Change activity status",
		Description: "Cancelling an activity cascades the cancellation to its signups.",
	}, func(ctx context.Context, input *changeStatusInput) (*envelopeOutput, error) {
		if err := e.ChangeActivityStatus(ctx, input.Body.ActivityID, input.Body.Status); err != nil {
			return nil, handleError(err)
		}
		return success(nil), nil
	})
}

func registerSignups(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-signups",
		Method:      http.MethodGet,
		Path:        "/sign",
		Summary:     "List signups",
	}, func(ctx context.Context, _ *struct{}) (*envelopeOutput, error) {
		signups, err := e.ListSignups(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return success(signups), nil
	})

	type signupInput struct {
		Body struct {
			ActivityID int64  `json:"activityId"`
			UserID     string `json:"userId"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "sign-up",
		Method:      http.MethodPost,
		Path:        "/sign",
		Summary:     "Sign up for an activity",
	}, func(ctx context.Context, input *signupInput) (*envelopeOutput, error) {
		if _, err := e.SignUp(ctx, input.Body.ActivityID, input.Body.UserID); err != nil {
			return nil, handleError(err)
		}
		return success(nil), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-sign-up",
		Method:      http.MethodDelete,
		Path:        "/sign",
		Summary:     "Cancel a signup",
	}, func(ctx context.Context, input *signupInput) (*envelopeOutput, error) {
		if err := e.CancelSignUp(ctx, input.Body.ActivityID, input.Body.UserID); err != nil {
			return nil, handleError(err)
		}
		return success(nil), nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/user",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*envelopeOutput, error) {
		users, err := e.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return success(users), nil
	})

	type registerInput struct {
		Body struct {
			UserID    string `json:"user_id,omitempty"`
			SchoolNum string `json:"school_num,omitempty"`
			Name      string `json:"name"`
			Password  string `json:"password,omitempty"`
			Phone     string `json:"phone,omitempty"`
			Email     string `json:"email,omitempty"`
			Role      string `json:"role,omitempty"`
			ClassID   string `json:"class_id,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "register-user",
		Method:      http.MethodPost,
		Path:        "/register",
		Summary:     "Register a user",
	}, func(ctx context.Context, input *registerInput) (*envelopeOutput, error) {
		b := input.Body
		_, err := e.Register(ctx, engine.RegisterOptions{
			UserID:    b.UserID,
			SchoolNum: b.SchoolNum,
			Name:      b.Name,
			Password:  b.Password,
			Phone:     b.Phone,
			Email:     b.Email,
			Role:      b.Role,
			ClassID:   b.ClassID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return success(nil), nil
	})

	type userIDInput struct {
		Body struct {
			UserID string `json:"userId"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/user",
		Summary:     "Delete a user",
	}, func(ctx context.Context, input *userIDInput) (*envelopeOutput, error) {
		if err := e.DeleteUser(ctx, input.Body.UserID); err != nil {
			return nil, handleError(err)
		}
		return success(nil), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user-name",
		Method:      http.MethodPost,
		Path:        "/getname",
		Summary:     "Resolve a user id to a display name",
	}, func(ctx context.Context, input *userIDInput) (*envelopeOutput, error) {
		name, err := e.UserName(ctx, input.Body.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return success(name), nil
	})
}

func registerClasses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-classes",
		Method:      http.MethodGet,
		Path:        "/class",
		Summary:     "List classes",
	}, func(ctx context.Context, _ *struct{}) (*envelopeOutput, error) {
		classes, err := e.ListClasses(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return success(classes), nil
	})
}
