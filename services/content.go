package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"kaizen/cache"
	"kaizen/logging"
	"kaizen/models"
	"kaizen/store"
)

const (
	MsgIssuesUnavailable     = "Unable to load newsletter issues"
	MsgTechniquesUnavailable = "Unable to load techniques"
	MsgIssueNotFound         = "Newsletter issue not found"
	MsgTechniqueNotFound     = "Technique not found"
)

type ContentRepository interface {
	ListIssues(ctx context.Context, limit int) ([]models.NewsletterIssue, error)
	GetIssue(ctx context.Context, id string) (*models.NewsletterIssue, error)
	ListTechniques(ctx context.Context, filters store.TechniqueFilters) ([]models.Technique, error)
	GetTechnique(ctx context.Context, id string) (*models.Technique, error)
}

type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

type IssueList struct {
	Data  []models.NewsletterIssue `json:"data"`
	Error string                   `json:"error,omitempty"`
}

type IssueResult struct {
	Data     *models.NewsletterIssue `json:"data"`
	Error    string                  `json:"error,omitempty"`
	NotFound bool                    `json:"-"`
}

type TechniqueList struct {
	Data  []models.Technique `json:"data"`
	Error string             `json:"error,omitempty"`
}

type TechniqueResult struct {
	Data     *models.Technique `json:"data"`
	Error    string            `json:"error,omitempty"`
	NotFound bool              `json:"-"`
}

// ContentService reads newsletter issues and techniques and marks the items
// the viewer's tier cannot open as locked.
type ContentService struct {
	repo  ContentRepository
	cache ListCache
	log   *logging.Logger
}

// NewContentService builds the read path. cache may be nil.
func NewContentService(repo ContentRepository, listCache ListCache, log *logging.Logger) *ContentService {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &ContentService{repo: repo, cache: listCache, log: log.WithField("component", "content")}
}

func (s *ContentService) readMessage(err error, fallback string) string {
	if errors.Is(err, store.ErrUnavailable) {
		return MsgUnavailable
	}
	s.log.WithError(err).Error(fallback)
	return fallback
}

func (s *ContentService) cached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		s.log.WithError(err).WithField("key", key).Debug("content cache read failed")
	}
	return err == nil
}

func (s *ContentService) remember(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.WithError(err).WithField("key", key).Debug("content cache write failed")
	}
}

// GetNewsletterIssues lists issues newest first. limit <= 0 lists all.
func (s *ContentService) GetNewsletterIssues(ctx context.Context, limit int, viewer models.Tier) IssueList {
	if s.repo == nil {
		return IssueList{Data: []models.NewsletterIssue{}, Error: MsgUnavailable}
	}

	key := "issues:" + strconv.Itoa(limit)
	var issues []models.NewsletterIssue
	if !s.cached(ctx, key, &issues) {
		var err error
		issues, err = s.repo.ListIssues(ctx, limit)
		if err != nil {
			return IssueList{Data: []models.NewsletterIssue{}, Error: s.readMessage(err, MsgIssuesUnavailable)}
		}
		s.remember(ctx, key, issues)
	}

	out := make([]models.NewsletterIssue, len(issues))
	for i, issue := range issues {
		out[i] = LockIssue(issue, viewer)
	}
	return IssueList{Data: out}
}

func (s *ContentService) GetNewsletterIssue(ctx context.Context, id string, viewer models.Tier) IssueResult {
	if s.repo == nil {
		return IssueResult{Error: MsgUnavailable}
	}

	issue, err := s.repo.GetIssue(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return IssueResult{Error: MsgIssueNotFound, NotFound: true}
	}
	if err != nil {
		return IssueResult{Error: s.readMessage(err, MsgIssuesUnavailable)}
	}

	locked := LockIssue(*issue, viewer)
	return IssueResult{Data: &locked}
}

func (s *ContentService) GetTechniques(ctx context.Context, filters store.TechniqueFilters, viewer models.Tier) TechniqueList {
	if s.repo == nil {
		return TechniqueList{Data: []models.Technique{}, Error: MsgUnavailable}
	}

	key := techniqueCacheKey(filters)
	var techniques []models.Technique
	if !s.cached(ctx, key, &techniques) {
		var err error
		techniques, err = s.repo.ListTechniques(ctx, filters)
		if err != nil {
			return TechniqueList{Data: []models.Technique{}, Error: s.readMessage(err, MsgTechniquesUnavailable)}
		}
		s.remember(ctx, key, techniques)
	}

	out := make([]models.Technique, len(techniques))
	for i, t := range techniques {
		out[i] = LockTechnique(t, viewer)
	}
	return TechniqueList{Data: out}
}

func (s *ContentService) GetTechnique(ctx context.Context, id string, viewer models.Tier) TechniqueResult {
	if s.repo == nil {
		return TechniqueResult{Error: MsgUnavailable}
	}

	t, err := s.repo.GetTechnique(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return TechniqueResult{Error: MsgTechniqueNotFound, NotFound: true}
	}
	if err != nil {
		return TechniqueResult{Error: s.readMessage(err, MsgTechniquesUnavailable)}
	}

	locked := LockTechnique(*t, viewer)
	return TechniqueResult{Data: &locked}
}

// LockIssue hides the body of an issue the viewer cannot open.
func LockIssue(issue models.NewsletterIssue, viewer models.Tier) models.NewsletterIssue {
	if !CanAccessContent(viewer, issue.TierRequired) {
		issue.Locked = true
		issue.ContentMD = ""
	}
	return issue
}

// LockTechnique hides the full spec of a technique the viewer cannot open.
func LockTechnique(t models.Technique, viewer models.Tier) models.Technique {
	if !CanAccessContent(viewer, t.TierRequired) {
		t.Locked = true
		t.FullSpec = nil
	}
	return t
}

func techniqueCacheKey(f store.TechniqueFilters) string {
	return "techniques:" + strings.Join([]string{
		f.Category,
		f.Tier,
		strings.ToLower(strings.TrimSpace(f.Search)),
		strconv.Itoa(f.Limit),
	}, "|")
}
