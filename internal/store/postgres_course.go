package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const courseColumns = `id, title, description, price, durations, is_published, created_at, updated_at`

func scanCourse(row pgx.Row) (*domain.Course, error) {
	var c domain.Course
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Price, &c.Durations, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if c.Durations == nil {
		c.Durations = []string{}
	}
	return &c, nil
}

func (r *PostgresRepository) ListCourses(ctx context.Context, publishedOnly bool) ([]domain.Course, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM courses
		WHERE ($1 = FALSE OR is_published = TRUE)
		ORDER BY created_at DESC
	`, courseColumns), publishedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []domain.Course{}
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *course)
	}
	return courses, rows.Err()
}

func (r *PostgresRepository) FindCourseByID(ctx context.Context, courseID uuid.UUID) (*domain.Course, error) {
	course, err := scanCourse(r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns), courseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

func (r *PostgresRepository) CreateCourse(ctx context.Context, course *domain.Course) error {
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	if course.Durations == nil {
		course.Durations = []string{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO courses (id, title, description, price, durations, is_published)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, course.ID, strings.TrimSpace(course.Title), course.Description, course.Price, course.Durations, course.IsPublished,
	).Scan(&course.CreatedAt, &course.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "courses_title_key") {
			return ErrCourseTitleTaken
		}
		return err
	}
	return nil
}

// UpdateCourse applies the non-nil fields of update.
func (r *PostgresRepository) UpdateCourse(ctx context.Context, courseID uuid.UUID, update domain.CourseUpdate) (*domain.Course, error) {
	sets := []string{}
	args := []any{courseID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Title != nil {
		add("title", strings.TrimSpace(*update.Title))
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Price != nil {
		add("price", *update.Price)
	}
	if update.Durations != nil {
		add("durations", *update.Durations)
	}
	if update.IsPublished != nil {
		add("is_published", *update.IsPublished)
	}
	if len(sets) == 0 {
		return r.FindCourseByID(ctx, courseID)
	}

	query := fmt.Sprintf("UPDATE courses SET %s, updated_at = NOW() WHERE id = $1 RETURNING %s", strings.Join(sets, ", "), courseColumns)
	course, err := scanCourse(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrCourseNotFound
		case isUniqueViolation(err, "courses_title_key"):
			return nil, ErrCourseTitleTaken
		}
		return nil, err
	}
	return course, nil
}

func (r *PostgresRepository) DeleteCourse(ctx context.Context, courseID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM courses WHERE id = $1", courseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}
