package service

import (
	"context"

	"tdh/internal/models"
	"tdh/internal/moderation"
	"tdh/internal/repository"
)

// pendingLimit bounds the approval queue shown on the dashboard; older
// requests appear as newer ones are handled.
const pendingLimit = 200

type AdminService struct {
	userRepo   repository.UserRepository
	postRepo   repository.PostRepository
	centerRepo repository.CenterRepository
}

func NewAdminService(userRepo repository.UserRepository, postRepo repository.PostRepository, centerRepo repository.CenterRepository) *AdminService {
	return &AdminService{userRepo: userRepo, postRepo: postRepo, centerRepo: centerRepo}
}

// Dashboard collects pending accounts, one page of posts and the centers for
// moderators. Every post is reachable by following NextOffset.
func (s *AdminService) Dashboard(ctx context.Context, requester *models.User, page Page) (*models.Dashboard, error) {
	if err := moderation.RequireAdmin(requester).Err(); err != nil {
		return nil, err
	}

	page = page.normalize()
	pending, err := s.userRepo.ListByStatus(ctx, models.StatusPending, pendingLimit, 0)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	total, err := s.postRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	centers, err := s.centerRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	dash := &models.Dashboard{
		PendingAccounts: pending,
		Posts:           posts,
		PostsTotal:      total,
		Centers:         centers,
	}
	if next := page.Offset + len(posts); int64(next) < total {
		dash.NextOffset = &next
	}
	return dash, nil
}
