package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/google/uuid"
)

type CourseService struct {
	repo store.Repository
}

func NewCourseService(repo store.Repository) *CourseService {
	return &CourseService{repo: repo}
}

// List returns published courses, or every course for admins.
func (s *CourseService) List(ctx context.Context, includeDrafts bool) ([]domain.Course, error) {
	courses, err := s.repo.ListCourses(ctx, !includeDrafts)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (s *CourseService) Get(ctx context.Context, courseID uuid.UUID) (*domain.Course, error) {
	course, err := s.repo.FindCourseByID(ctx, courseID)
	if err != nil {
		return nil, mapCourseError(err)
	}
	return course, nil
}

func (s *CourseService) Create(ctx context.Context, course domain.Course) (*domain.Course, error) {
	course.Title = strings.TrimSpace(course.Title)
	if course.Title == "" {
		return nil, validationError("title is required")
	}
	if course.Price <= 0 {
		return nil, validationError("price must be positive")
	}
	course.ID = uuid.New()
	if err := s.repo.CreateCourse(ctx, &course); err != nil {
		return nil, mapCourseError(err)
	}
	return &course, nil
}

func (s *CourseService) Update(ctx context.Context, courseID uuid.UUID, update domain.CourseUpdate) (*domain.Course, error) {
	if update.Empty() {
		return nil, validationError("nothing to update")
	}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, validationError("title cannot be empty")
		}
		update.Title = &title
	}
	if update.Price != nil && *update.Price <= 0 {
		return nil, validationError("price must be positive")
	}
	course, err := s.repo.UpdateCourse(ctx, courseID, update)
	if err != nil {
		return nil, mapCourseError(err)
	}
	return course, nil
}

func (s *CourseService) Delete(ctx context.Context, courseID uuid.UUID) error {
	if err := s.repo.DeleteCourse(ctx, courseID); err != nil {
		return mapCourseError(err)
	}
	return nil
}

func mapCourseError(err error) error {
	switch {
	case errors.Is(err, store.ErrCourseNotFound):
		return notFoundError("course not found")
	case errors.Is(err, store.ErrCourseTitleTaken):
		return newError(ErrConflict, "a course with this title already exists")
	}
	return fmt.Errorf("course store: %w", err)
}
