package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/graphstudio/engine/internal/api/types"
	"github.com/graphstudio/engine/internal/models"
	appErr "github.com/graphstudio/engine/pkg/errors"
)

// SessionResolver maps an opaque bearer token to its project.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Project, error)
}

type projectKeyType string

const projectKey projectKeyType = "project"

// Auth resolves the Bearer session token and attaches the resolved
// project to the request context. A missing credential is 401; a supplied
// but unresolvable one is 403. Downstream handlers scope every operation
// by the attached project and ignore any project id the client implies.
func Auth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				writeAuthError(w, appErr.New(appErr.CodeUnauthorized, "missing session token"))
				return
			}
			token := strings.TrimSpace(ah[len("Bearer "):])
			project, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !appErr.IsCode(err, appErr.CodeForbidden) {
					err = appErr.Wrap(err, appErr.CodeInternal, "session resolution failed")
				}
				writeAuthError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), projectKey, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProject returns the project resolved by Auth, or nil outside an
// authorized request.
func GetProject(ctx context.Context) *models.Project {
	if v := ctx.Value(projectKey); v != nil {
		if p, ok := v.(*models.Project); ok {
			return p
		}
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(types.StatusFor(err))
	_ = json.NewEncoder(w).Encode(types.APIResponse{Success: false, Error: types.FromAppError(err)})
}
