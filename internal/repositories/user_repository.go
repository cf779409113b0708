package repositories

import (
	"database/sql"
	"fmt"

	"bizmart/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id int) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByPhone(phone string) (*models.User, error)
	Activate(userID int) error
	UpdatePassword(userID int, passwordHash string) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) Create(user *models.User) error {
	const q = `
		INSERT INTO users (email, username, phone, password_hash, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.DB.QueryRow(q,
		user.Email,
		user.Username,
		user.Phone,
		user.PasswordHash,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt); err != nil {
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

const userColumns = `id, email, username, phone, password_hash, active, created_at`

func (r *userRepository) scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Phone, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user scan: %w", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(id int) (*models.User, error) {
	return r.scanOne(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	return r.scanOne(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	return r.scanOne(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *userRepository) GetByPhone(phone string) (*models.User, error) {
	return r.scanOne(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// Activate flips active exactly once; activating an already-active user is a no-op.
func (r *userRepository) Activate(userID int) error {
	if _, err := r.DB.Exec(`UPDATE users SET active = TRUE WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("user activate: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(userID int, passwordHash string) error {
	if _, err := r.DB.Exec(`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID); err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	return nil
}
