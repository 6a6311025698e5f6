package api

import (
	"strconv"
	"time"

	"wileywidget/middleware"
	"wileywidget/repository"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// parseID 解析路径中的 ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// bindPage 绑定分页参数
func bindPage(c *gin.Context) (repository.PageQuery, bool) {
	var q repository.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return q, false
	}
	return q, true
}

// currentUser 审计用的当前用户名
func currentUser(c *gin.Context) string {
	if name := middleware.GetCurrentUsername(c); name != "" {
		return name
	}
	return "system"
}

// queryInt 读取可选的整数查询参数，缺省为 0
func queryInt(c *gin.Context, name string) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		BadRequest(c, "无效的参数: "+name)
		return 0, false
	}
	return n, true
}

// parseDateRange 解析 from/to 日期参数（2006-01-02），to 包含当天
// 缺省时 from 为当年 1 月 1 日，to 为今天
func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.Local)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	if v := c.Query("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
			return from, to, false
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
			return from, to, false
		}
		to = t
	}
	if to.Before(from) {
		BadRequest(c, "开始日期不能晚于结束日期")
		return from, to, false
	}
	return from, to.Add(24*time.Hour - time.Second), true
}
