package handlers

import (
	"context"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2"

	"github.com/reelsmith/reelsmith/internal/http/middleware"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
)

// Scope resolves path project IDs into rows the caller may touch. Unknown
// projects and ownership misses both map to 404 so existence never leaks.
type Scope struct {
	projects    *repository.ProjectRepository
	authEnabled bool
	logger      *slog.Logger
}

// NewScope creates a Scope.
func NewScope(projects *repository.ProjectRepository, authEnabled bool, log *slog.Logger) *Scope {
	if log == nil {
		log = slog.Default()
	}
	return &Scope{projects: projects, authEnabled: authEnabled, logger: log}
}

// Project loads the project with the given ID string, enforcing ownership
// for authenticated callers.
func (s *Scope) Project(ctx context.Context, id string) (*models.Project, error) {
	pid, err := models.ParseULID(id)
	if err != nil {
		return nil, huma.Error404NotFound("project not found")
	}

	project, err := s.projects.GetByID(ctx, pid)
	if err != nil {
		s.logger.Error("failed to load project", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if project == nil {
		return nil, huma.Error404NotFound("project not found")
	}

	if s.authEnabled {
		if principal := middleware.Principal(ctx); principal != "" {
			owned, err := s.projects.IsOwner(ctx, project.ID, principal)
			if err != nil {
				s.logger.Error("failed to check project owner", slog.String("error", err.Error()))
				return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
			}
			if !owned {
				return nil, huma.Error404NotFound("project not found")
			}
		}
	}

	return project, nil
}

// fileExists reports whether path is an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
