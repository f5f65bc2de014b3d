package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	util "github.com/artisansflow/portal/pkg/util"
)

const activityWindowDays = 7

// AdminProfiles is the profile access needed by the admin panel.
type AdminProfiles interface {
	List(ctx context.Context, limit, offset int) ([]domain.Profile, error)
	Count(ctx context.Context) (int64, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.Profile, error)
}

// ActivityReader reads the sign-in audit trail.
type ActivityReader interface {
	Count(ctx context.Context) (int64, error)
	DailyCounts(ctx context.Context, since time.Time) ([]domain.ActivityDay, error)
}

// AdminService serves the admin overview and user management.
type AdminService struct {
	profiles AdminProfiles
	activity ActivityReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdminService builds the service.
func NewAdminService(profiles AdminProfiles, activity ActivityReader, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{profiles: profiles, activity: activity, logger: logger, now: time.Now}
}

// Overview holds the admin dashboard counters.
type Overview struct {
	TotalUsers        int64
	TotalSignIns      int64
	Connections       []domain.ActivityDay
	ConnectionAverage int64
}

// Overview gathers counters. Failing counters are logged and left at zero.
func (s *AdminService) Overview(ctx context.Context) Overview {
	var out Overview
	var err error

	if out.TotalUsers, err = s.profiles.Count(ctx); err != nil {
		s.logger.Warn("profile count failed", zap.Error(err))
	}
	if out.TotalSignIns, err = s.activity.Count(ctx); err != nil {
		s.logger.Warn("activity count failed", zap.Error(err))
	}

	now := s.now()
	since := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -(activityWindowDays - 1))
	counts, err := s.activity.DailyCounts(ctx, since)
	if err != nil {
		s.logger.Warn("activity series failed", zap.Error(err))
	}
	out.Connections = domain.ActivitySeries(now, activityWindowDays, counts)

	var sum int64
	for _, day := range out.Connections {
		sum += day.Count
	}
	out.ConnectionAverage = sum / activityWindowDays
	return out
}

// Users lists profiles, newest first.
func (s *AdminService) Users(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.profiles.List(ctx, limit, offset)
	if err != nil {
		return nil, util.NewUpstreamError("unable to list users", 0, err)
	}
	return users, nil
}

// SetRole changes the authoritative role of a profile.
func (s *AdminService) SetRole(ctx context.Context, userID string, raw string) (*domain.Profile, error) {
	role := domain.Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.IsKnown() {
		return nil, util.NewValidationError("unknown role", map[string]any{"role": raw})
	}
	profile, err := s.profiles.SetRole(ctx, userID, role)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return nil, util.NewNotFound("profile", map[string]any{"id": userID})
	}
	if err != nil {
		return nil, util.NewUpstreamError("unable to update role", 0, err)
	}
	s.logger.Info("profile role changed", zap.String("user_id", userID), zap.String("role", string(role)))
	return profile, nil
}
