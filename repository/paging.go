package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageQuery 分页与排序参数
type PageQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	SortBy   string `form:"sort_by"`
	SortDesc bool   `form:"sort_desc"`
	Search   string `form:"search"`
}

// Normalize 补全默认值并限制每页数量
func (q PageQuery) Normalize() PageQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Offset 偏移量
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// OrderClause 根据白名单生成排序子句，未知列使用默认排序
func (q PageQuery) OrderClause(sortable map[string]string, defaultOrder string) string {
	col, ok := sortable[q.SortBy]
	if !ok {
		return defaultOrder
	}
	if q.SortDesc {
		return col + " DESC"
	}
	return col + " ASC"
}

// Page 分页结果
type Page[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	List     []T   `json:"list"`
}

// paginate 统计总数并查询当前页，preloads 只作用于列表查询
func paginate[T any](ctx context.Context, query *gorm.DB, q PageQuery, sortable map[string]string, defaultOrder string, preloads ...string) (Page[T], error) {
	q = q.Normalize()
	var total int64
	if err := query.Session(&gorm.Session{}).WithContext(ctx).Count(&total).Error; err != nil {
		return Page[T]{}, err
	}
	items := make([]T, 0)
	find := query.Session(&gorm.Session{}).WithContext(ctx)
	for _, p := range preloads {
		find = find.Preload(p)
	}
	if err := find.
		Order(q.OrderClause(sortable, defaultOrder)).
		Offset(q.Offset()).
		Limit(q.PageSize).
		Find(&items).Error; err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Total: total, Page: q.Page, PageSize: q.PageSize, List: items}, nil
}

// likePattern 构造模糊匹配模式
func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
