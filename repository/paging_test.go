package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQueryNormalize(t *testing.T) {
	q := PageQuery{Search: "  water  "}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, defaultPageSize, q.PageSize)
	assert.Equal(t, "water", q.Search)
	assert.Equal(t, 0, q.Offset())

	q = PageQuery{Page: 3, PageSize: 500}.Normalize()
	assert.Equal(t, maxPageSize, q.PageSize)
	assert.Equal(t, 200, q.Offset())
}

func TestPageQueryOrderClause(t *testing.T) {
	sortable := map[string]string{"name": "name", "balance": "current_balance"}

	assert.Equal(t, "current_balance DESC", PageQuery{SortBy: "balance", SortDesc: true}.OrderClause(sortable, "id ASC"))
	assert.Equal(t, "name ASC", PageQuery{SortBy: "name"}.OrderClause(sortable, "id ASC"))
	// 不在白名单中的列使用默认排序
	assert.Equal(t, "id ASC", PageQuery{SortBy: "password; DROP TABLE users"}.OrderClause(sortable, "id ASC"))
}
