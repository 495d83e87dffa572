package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"goalline/internal/domain"
	"goalline/internal/engine"
	"goalline/internal/outline"
	"goalline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Log      *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"empty_document"`
	Message string         `json:"message" example:"empty document"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope every endpoint answers with.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the goalline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = log
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Goalline API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerGoals(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerMissions(group, cfg.Engine)
	registerStats(group, cfg.Engine)
	registerMe(group)
	registerEvents(group, cfg.Engine)
	registerDoctor(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, outline.ErrEmptyDocument):
		return newAPIError(http.StatusBadRequest, "empty_document", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, outline.ErrIDSpaceExhausted), errors.Is(err, repo.ErrIDExhausted):
		return newAPIError(http.StatusConflict, "id_exhausted", err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusServiceUnavailable, "unavailable", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerGoals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-goals",
		Method:      http.MethodGet,
		Path:        "/goals",
		Summary:     "List goals",
	}, func(ctx context.Context, input *struct {
		All bool `query:"all" doc:"Include done and cancelled goals"`
	}) (*struct {
		Body []GoalResponse `json:"body"`
	}, error) {
		items, err := e.Goals(ctx, input.All)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []GoalResponse `json:"body"`
		}{Body: mapGoals(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-goal",
		Method:      http.MethodGet,
		Path:        "/goals/{id}",
		Summary:     "Get goal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body GoalResponse `json:"body"`
	}, error) {
		g, err := e.Goal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalResponse `json:"body"`
		}{Body: goalResponse(g)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-goal-notes",
		Method:      http.MethodGet,
		Path:        "/goals/{id}/notes",
		Summary:     "List notes of a goal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []NoteResponse `json:"body"`
	}, error) {
		notes, err := e.Notes(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []NoteResponse `json:"body"`
		}{Body: mapNotes(notes)}, nil
	})
}

// registerDocuments exposes the tasks outline and the schedule as editable text.
func registerDocuments(api huma.API, e engine.Engine) {
	type readInput struct {
		All bool `query:"all" doc:"Include done and cancelled goals"`
	}
	type docOutput struct {
		Body DocumentResponse `json:"body"`
	}
	type syncInput struct {
		Body DocumentRequest `json:"body"`
	}
	type syncOutput struct {
		Body SyncResponse `json:"body"`
	}
	docs := []struct {
		name   string
		render func(context.Context, bool) (string, error)
		sync   func(context.Context, string) (engine.Summary, error)
	}{
		{"outline", e.TasksText, e.SyncTasks},
		{"schedule", e.ScheduleText, e.SyncSchedule},
	}
	includeArchived := e.Config != nil && e.Config.Outline.IncludeArchived
	for _, d := range docs {
		d := d
		huma.Register(api, huma.Operation{
			OperationID: "get-" + d.name,
			Method:      http.MethodGet,
			Path:        "/" + d.name,
			Summary:     "Render " + d.name,
		}, func(ctx context.Context, input *readInput) (*docOutput, error) {
			text, err := d.render(ctx, input.All || includeArchived)
			if err != nil {
				return nil, handleError(err)
			}
			return &docOutput{Body: DocumentResponse{Text: text}}, nil
		})

		huma.Register(api, huma.Operation{
			OperationID: "sync-" + d.name,
			Method:      http.MethodPut,
			Path:        "/" + d.name,
			Summary:     "Merge an edited " + d.name,
			Errors:      []int{http.StatusBadRequest, http.StatusConflict},
		}, func(ctx context.Context, input *syncInput) (*syncOutput, error) {
			sum, err := d.sync(ctx, input.Body.Text)
			if err != nil {
				return nil, handleError(err)
			}
			text, err := d.render(ctx, includeArchived)
			if err != nil {
				return nil, handleError(err)
			}
			return &syncOutput{Body: SyncResponse{Summary: sum, Text: text}}, nil
		})
	}
}

func registerMissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/missions/{id}",
		Summary:     "Render a mission document",
		Description: "Use `current` for the first pending goal.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		id := input.ID
		if id == "current" {
			id = ""
		}
		missionID, text, err := e.MissionText(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: DocumentResponse{MissionID: missionID, Text: text}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-mission",
		Method:      http.MethodPut,
		Path:        "/missions",
		Summary:     "Merge an edited mission document",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body DocumentRequest `json:"body"`
	}) (*struct {
		Body SyncResponse `json:"body"`
	}, error) {
		sum, err := e.SyncMission(ctx, input.Body.Text)
		if err != nil {
			return nil, handleError(err)
		}
		_, text, err := e.MissionText(ctx, sum.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SyncResponse `json:"body"`
		}{Body: SyncResponse{Summary: sum, Text: text}}, nil
	})
}

func registerStats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Goal and note counts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Stats `json:"body"`
	}, error) {
		stats, err := e.Stats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stats `json:"body"`
		}{Body: stats}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"subject": p.Subject, "source": p.Source}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"goal,note"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDoctor(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "doctor",
		Method:      http.MethodPost,
		Path:        "/doctor",
		Summary:     "Find and optionally unlink tangled goals",
	}, func(ctx context.Context, input *struct {
		Body DoctorRequest `json:"body"`
	}) (*struct {
		Body engine.DoctorReport `json:"body"`
	}, error) {
		report, err := e.Doctor(ctx, input.Body.Fix)
		if err != nil {
			return nil, handleError(err)
		}
		if report.Cyclic == nil {
			report.Cyclic = []string{}
		}
		if report.Overvisited == nil {
			report.Overvisited = []string{}
		}
		return &struct {
			Body engine.DoctorReport `json:"body"`
		}{Body: report}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
