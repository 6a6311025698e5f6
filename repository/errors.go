package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("记录已存在")
	// ErrHasDependents 存在关联数据，禁止删除
	ErrHasDependents = errors.New("存在关联数据，无法删除")
	// ErrInvalid 参数校验失败
	ErrInvalid = errors.New("参数校验失败")
	// ErrInvalidTransition 非法状态流转
	ErrInvalidTransition = errors.New("非法状态流转")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// translate 将 gorm 错误映射为仓储错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// countWhere 统计满足条件的记录数
func countWhere(ctx context.Context, db *gorm.DB, model any, query string, args ...any) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(model).Where(query, args...).Count(&n).Error
	return n, err
}

// exists 记录存在时返回 true
func exists(ctx context.Context, db *gorm.DB, model any, id uint) (bool, error) {
	n, err := countWhere(ctx, db, model, "id = ?", id)
	return n > 0, err
}

// ensureUnique 查询命中任何记录时返回 ErrDuplicate
func ensureUnique(q *gorm.DB) error {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicate
	}
	return nil
}

// dependent 删除前需要检查的关联表，where 以被删记录 ID 为唯一参数
type dependent struct {
	model any
	where string
}

// hasDependents 任一关联表引用了 id 时返回 true
func hasDependents(ctx context.Context, db *gorm.DB, id uint, deps ...dependent) (bool, error) {
	for _, d := range deps {
		n, err := countWhere(ctx, db, d.model, d.where, id)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
