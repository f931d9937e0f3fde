package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ams-platform/attendance-api/internal/models"
)

const userColumns = "id, name, email, role, stage, department, otp_code, otp_expires_at, otp_attempts, created_at, updated_at"

// UserRepository provides database access for users, their OTP challenge and
// subject enrollment.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// SetOTPChallenge installs a fresh login challenge, replacing any pending one
// and resetting the attempt counter.
func (r *UserRepository) SetOTPChallenge(ctx context.Context, id, code string, expiresAt time.Time) error {
	const query = `UPDATE users SET otp_code = $2, otp_expires_at = $3, otp_attempts = 0, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, code, expiresAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set otp challenge: %w", err)
	}
	return nil
}

// ClearOTPChallenge removes the pending challenge, if any.
func (r *UserRepository) ClearOTPChallenge(ctx context.Context, id string) error {
	const query = `UPDATE users SET otp_code = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear otp challenge: %w", err)
	}
	return nil
}

// IncrementOTPAttempts charges one failed guess against the pending challenge
// and returns the new attempt count. The arithmetic update runs inside the
// database so concurrent guesses cannot lose increments.
func (r *UserRepository) IncrementOTPAttempts(ctx context.Context, id string) (int, error) {
	const query = `UPDATE users SET otp_attempts = otp_attempts + 1, updated_at = $2 WHERE id = $1 AND otp_code IS NOT NULL RETURNING otp_attempts`
	var attempts int
	if err := r.db.GetContext(ctx, &attempts, query, id, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return attempts, nil
}

// ListEnrolled returns every student enrolled in the subject.
func (r *UserRepository) ListEnrolled(ctx context.Context, subjectID string) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN user_subjects us ON us.user_id = u.id WHERE us.subject_id = $1 AND u.role = $2 ORDER BY u.name ASC`,
		prefixColumns("u", userColumns))
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, subjectID, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return users, nil
}

// Enroll adds the user to a subject. Enrolling twice is a no-op.
func (r *UserRepository) Enroll(ctx context.Context, userID, subjectID string) error {
	const query = `INSERT INTO user_subjects (user_id, subject_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, subjectID); err != nil {
		return fmt.Errorf("enroll user: %w", err)
	}
	return nil
}

// Unenroll removes the user from a subject.
func (r *UserRepository) Unenroll(ctx context.Context, userID, subjectID string) error {
	const query = `DELETE FROM user_subjects WHERE user_id = $1 AND subject_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, subjectID); err != nil {
		return fmt.Errorf("unenroll user: %w", err)
	}
	return nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, name, email, role, stage, department, created_at, updated_at) VALUES (:id, :name, :email, :role, :stage, :department, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update updates mutable fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, email = :email, stage = :stage, department = :department, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes a user and their enrollments.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"name":       true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
