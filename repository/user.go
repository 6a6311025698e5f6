package repository

import (
	"context"

	"wileywidget/models"

	"gorm.io/gorm"
)

// UserRepository 用户仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUsername 根据用户名获取
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetByID 根据ID获取
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Create 创建用户，Password 需为已加密的哈希
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.Username == "" || u.Password == "" {
		return invalid("用户名和密码不能为空")
	}
	if u.Role == "" {
		u.Role = models.RoleViewer
	}
	if !models.ValidRole(u.Role) {
		return invalid("无效的角色: %s", u.Role)
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	if _, err := r.GetByUsername(ctx, u.Username); err == nil {
		return ErrDuplicate
	}
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

// UpdateStatus 锁定或解锁用户
func (r *UserRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	if status != models.UserStatusActive && status != models.UserStatusLocked {
		return invalid("无效的用户状态: %s", status)
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 用户列表
func (r *UserRepository) List(ctx context.Context, q PageQuery) (Page[models.User], error) {
	q = q.Normalize()
	query := r.db.Model(&models.User{})
	if q.Search != "" {
		p := likePattern(q.Search)
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", p, p)
	}
	return paginate[models.User](ctx, query, q, map[string]string{"username": "username", "created_at": "created_at"}, "id ASC")
}
