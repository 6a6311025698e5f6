package service

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"wileywidget/models"

	"go.uber.org/zap"
)

type userKey struct{}

// ContextWithUser 在 context 中记录操作用户
func ContextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey{}, username)
}

// UserFromContext 读取操作用户，未设置时为 system
func UserFromContext(ctx context.Context) string {
	if u, ok := ctx.Value(userKey{}).(string); ok && u != "" {
		return u
	}
	return "system"
}

// AuditAppender 审计记录写入
type AuditAppender interface {
	Add(ctx context.Context, e *models.AuditEntry) error
}

// FieldChange 单个字段的变更
type FieldChange struct {
	Old any `json:"old,omitempty"`
	New any `json:"new,omitempty"`
}

// ignoredAuditFields 不参与差异比较的字段
var ignoredAuditFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
}

// AuditService 记录实体变更
type AuditService struct {
	repo   AuditAppender
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService 创建审计服务
func NewAuditService(repo AuditAppender, l *zap.Logger) *AuditService {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: l.Named("audit"), now: time.Now}
}

// Record 记录一次变更，before/after 为 nil 分别表示新增和删除
// 写入失败只记录日志，不影响业务操作
func (s *AuditService) Record(ctx context.Context, user, entityType string, entityID uint, action models.AuditAction, before, after any) {
	if s == nil || s.repo == nil {
		return
	}
	changes, err := Diff(before, after)
	if err != nil {
		s.logger.Warn("生成审计差异失败", zap.String("entity", entityType), zap.Error(err))
	}
	if user == "" {
		user = UserFromContext(ctx)
	}
	entry := &models.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Username:   user,
		Changes:    changes,
		Timestamp:  s.now(),
	}
	if err := s.repo.Add(ctx, entry); err != nil {
		s.logger.Warn("写入审计记录失败", zap.String("entity", entityType), zap.Uint("id", entityID), zap.Error(err))
	}
}

func toFieldMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Diff 比较两个对象的 JSON 字段，返回变更字段的 JSON
func Diff(before, after any) (string, error) {
	b, err := toFieldMap(before)
	if err != nil {
		return "", err
	}
	a, err := toFieldMap(after)
	if err != nil {
		return "", err
	}
	keys := map[string]struct{}{}
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range a {
		keys[k] = struct{}{}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		if !ignoredAuditFields[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	changes := make(map[string]FieldChange)
	for _, k := range names {
		ov, oldOK := b[k]
		nv, newOK := a[k]
		if oldOK && newOK && reflect.DeepEqual(ov, nv) {
			continue
		}
		changes[k] = FieldChange{Old: ov, New: nv}
	}
	if len(changes) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
