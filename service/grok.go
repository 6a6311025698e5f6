package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"wileywidget/cache"
	"wileywidget/config"
	"wileywidget/metrics"
	"wileywidget/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const grokCachePrefix = "grok:"

var (
	maxMarginPct = decimal.NewFromInt(50)
	hundred      = decimal.NewFromInt(100)

	// fallbackOffsets 各企业型部门在内置公式中的调整比例
	fallbackOffsets = map[string]decimal.Decimal{
		models.DepartmentWater:      decimal.RequireFromString("0.05"),
		models.DepartmentSewer:      decimal.RequireFromString("0.03"),
		models.DepartmentTrash:      decimal.RequireFromString("0.02"),
		models.DepartmentApartments: decimal.RequireFromString("0.04"),
	}

	errUnparseable = errors.New("无法解析 AI 返回内容")
)

// RateRecommendation 费率建议
type RateRecommendation struct {
	Rates        map[string]decimal.Decimal `json:"rates"`
	Explanation  string                     `json:"explanation"`
	FromFallback bool                       `json:"from_fallback"`
	Cached       bool                       `json:"cached"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

type grokStatusError struct {
	status int
	body   string
}

func (e *grokStatusError) Error() string {
	return fmt.Sprintf("AI服务返回错误: %d, %s", e.status, e.body)
}

// GrokRecommendationService 调用 xAI Grok 生成费率建议，失败时使用内置公式
type GrokRecommendationService struct {
	cfg        config.GrokConfig
	httpClient *http.Client
	cache      cache.Cache
	ttl        time.Duration
	breaker    *CircuitBreaker
	logger     *zap.Logger
	metrics    *metrics.Metrics

	group singleflight.Group
	mu    sync.Mutex
	keys  map[string]struct{}

	retryInterval time.Duration
	callBudget    time.Duration
	now           func() time.Time
}

// NewGrokRecommendationService 创建费率建议服务
func NewGrokRecommendationService(cfg config.GrokConfig, c cache.Cache, l *zap.Logger, m *metrics.Metrics) *GrokRecommendationService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if l == nil {
		l = zap.NewNop()
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := NewCircuitBreaker("grok", cfg.BreakerFailureThreshold, time.Duration(cfg.BreakerOpenSeconds)*time.Second)
	b.OnChange(func(open bool) { m.SetBreakerOpen("grok", open) })
	return &GrokRecommendationService{
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: timeout},
		cache:         c,
		ttl:           ttl,
		breaker:       b,
		logger:        l.Named("grok"),
		metrics:       m,
		keys:          make(map[string]struct{}),
		retryInterval: time.Second,
		callBudget:    timeout * time.Duration(retries+1),
		now:           time.Now,
	}
}

// Enabled 是否配置了可用的 AI 服务
func (s *GrokRecommendationService) Enabled() bool {
	return s != nil && s.cfg.Enabled && s.cfg.APIKey != "" && s.cfg.BaseURL != ""
}

// BreakerState 熔断器状态
func (s *GrokRecommendationService) BreakerState() BreakerState {
	if s == nil {
		return BreakerClosed
	}
	return s.breaker.State()
}

func validateRecommendationInput(expenses map[string]decimal.Decimal, marginPct decimal.Decimal) error {
	if len(expenses) == 0 {
		return fmt.Errorf("%w: 部门支出不能为空", ErrInvalidArgument)
	}
	for name, amount := range expenses {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: 部门名称不能为空", ErrInvalidArgument)
		}
		if amount.IsNegative() {
			return fmt.Errorf("%w: 部门 %s 的支出不能为负数", ErrInvalidArgument, name)
		}
	}
	if marginPct.IsNegative() || marginPct.GreaterThan(maxMarginPct) {
		return fmt.Errorf("%w: 利润率必须在 0 到 50 之间", ErrInvalidArgument)
	}
	return nil
}

func sortedNames(expenses map[string]decimal.Decimal) []string {
	names := make([]string, 0, len(expenses))
	for n := range expenses {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// recommendationKey 与部门顺序无关的缓存键
func recommendationKey(expenses map[string]decimal.Decimal, marginPct decimal.Decimal) string {
	h := sha256.New()
	for _, n := range sortedNames(expenses) {
		fmt.Fprintf(h, "%s=%s|", n, expenses[n].String())
	}
	fmt.Fprintf(h, "margin=%s", marginPct.String())
	return grokCachePrefix + hex.EncodeToString(h.Sum(nil))
}

// GetRateRecommendations 获取各部门建议费率
func (s *GrokRecommendationService) GetRateRecommendations(ctx context.Context, expenses map[string]decimal.Decimal, marginPct decimal.Decimal) (*RateRecommendation, error) {
	if err := validateRecommendationInput(expenses, marginPct); err != nil {
		return nil, err
	}
	key := recommendationKey(expenses, marginPct)
	if rec, ok := cache.GetJSON[RateRecommendation](ctx, s.cache, key); ok {
		s.metrics.CacheHit(true)
		rec.Cached = true
		return &rec, nil
	}
	s.metrics.CacheHit(false)

	// 合并后的调用与发起者的 ctx 解耦，只受自身时限约束
	ch := s.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callBudget)
		defer cancel()
		return s.compute(callCtx, key, expenses, marginPct), nil
	})
	select {
	case res := <-ch:
		rec := *res.Val.(*RateRecommendation)
		return &rec, nil
	case <-ctx.Done():
		// 调用方不再等待，后台调用完成后仍会写入缓存
		return s.fallback(expenses, marginPct), nil
	}
}

// GetRecommendationExplanation 仅返回说明文字
func (s *GrokRecommendationService) GetRecommendationExplanation(ctx context.Context, expenses map[string]decimal.Decimal, marginPct decimal.Decimal) (string, error) {
	rec, err := s.GetRateRecommendations(ctx, expenses, marginPct)
	if err != nil {
		return "", err
	}
	return rec.Explanation, nil
}

// ClearCache 清除全部费率建议缓存
func (s *GrokRecommendationService) ClearCache(ctx context.Context) int {
	s.mu.Lock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.keys = make(map[string]struct{})
	s.mu.Unlock()
	if len(keys) > 0 {
		if err := s.cache.Delete(ctx, keys...); err != nil {
			s.logger.Warn("清除缓存失败", zap.Error(err))
		}
	}
	return len(keys)
}

func (s *GrokRecommendationService) compute(ctx context.Context, key string, expenses map[string]decimal.Decimal, marginPct decimal.Decimal) *RateRecommendation {
	if !s.Enabled() {
		return s.fallback(expenses, marginPct)
	}
	if !s.breaker.Allow() {
		s.logger.Warn("熔断器已打开，使用内置公式")
		return s.fallback(expenses, marginPct)
	}

	started := time.Now()
	content, err := s.callWithRetry(ctx, s.buildPrompt(expenses, marginPct))
	var rec *RateRecommendation
	if err == nil {
		rec, err = parseRecommendation(content, expenses, marginPct)
	}
	if errors.Is(err, context.Canceled) {
		s.breaker.Release()
		s.metrics.ObserveExternal("grok", "canceled", time.Since(started))
		return s.fallback(expenses, marginPct)
	}
	if err != nil {
		s.breaker.RecordFailure()
		s.metrics.ObserveExternal("grok", "error", time.Since(started))
		s.logger.Warn("AI 费率建议失败，使用内置公式", zap.Error(err))
		return s.fallback(expenses, marginPct)
	}
	s.breaker.RecordSuccess()
	s.metrics.ObserveExternal("grok", "success", time.Since(started))

	rec.GeneratedAt = s.now()
	cache.SetJSON(ctx, s.cache, key, rec, s.ttl)
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return rec
}

func (s *GrokRecommendationService) buildPrompt(expenses map[string]decimal.Decimal, marginPct decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("你是一名市政公用事业费率分析师。请根据以下各部门的年度支出，给出每个部门的建议费率（美元），")
	fmt.Fprintf(&b, "目标利润率为 %s%%。\n\n部门支出：\n", marginPct.String())
	for _, n := range sortedNames(expenses) {
		fmt.Fprintf(&b, "- %s: $%s\n", n, expenses[n].StringFixed(2))
	}
	b.WriteString("\n只返回一个 JSON 对象，格式为：{\"rates\":{\"部门名称\":数值},\"explanation\":\"说明\"}，不要包含其他内容。")
	return b.String()
}

func (s *GrokRecommendationService) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var content string
	op := func() error {
		c, err := s.call(ctx, prompt)
		if err == nil {
			content = c
			return nil
		}
		var se *grokStatusError
		if errors.As(err, &se) && se.status < 500 && se.status != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	b.MaxElapsedTime = 0
	retries := s.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
	return content, err
}

// call 发送兼容 OpenAI 格式的 chat/completions 请求
func (s *GrokRecommendationService) call(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]any{
		"model": s.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
		"stream":      false,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("构建请求失败: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("创建请求失败: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求AI服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &grokStatusError{status: resp.StatusCode, body: string(body)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", &grokStatusError{status: http.StatusBadRequest, body: "响应中无 choices"}
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseRecommendation 从回复中提取 JSON 对象，缺失的部门按内置公式补齐
func parseRecommendation(content string, expenses map[string]decimal.Decimal, marginPct decimal.Decimal) (*RateRecommendation, error) {
	raw, ok := firstJSONObject(content)
	if !ok {
		return nil, errUnparseable
	}
	var out struct {
		Rates       map[string]decimal.Decimal `json:"rates"`
		Explanation string                     `json:"explanation"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnparseable, err)
	}
	if len(out.Rates) == 0 {
		return nil, errUnparseable
	}
	rates := make(map[string]decimal.Decimal, len(expenses))
	for name, expense := range expenses {
		rate, ok := lookupRate(out.Rates, name)
		if !ok || rate.IsNegative() {
			rate = FallbackRate(name, expense, marginPct)
		}
		rates[name] = rate.Round(2)
	}
	return &RateRecommendation{Rates: rates, Explanation: strings.TrimSpace(out.Explanation)}, nil
}

// firstJSONObject 返回文本中第一个能完整解码的 JSON 对象，忽略其前后的说明文字
func firstJSONObject(content string) (json.RawMessage, bool) {
	for i := strings.IndexByte(content, '{'); i >= 0; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(content[i:])).Decode(&raw); err == nil {
			return raw, true
		}
		next := strings.IndexByte(content[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}

func lookupRate(rates map[string]decimal.Decimal, name string) (decimal.Decimal, bool) {
	if r, ok := rates[name]; ok {
		return r, true
	}
	for k, r := range rates {
		if strings.EqualFold(k, name) {
			return r, true
		}
	}
	return decimal.Zero, false
}

// FallbackRate 内置公式：支出 × (1 + 利润率/100) × (1 + 部门调整)
func FallbackRate(department string, expense, marginPct decimal.Decimal) decimal.Decimal {
	offset := fallbackOffset(department)
	return expense.
		Mul(decimal.NewFromInt(1).Add(marginPct.Div(hundred))).
		Mul(decimal.NewFromInt(1).Add(offset)).
		Round(2)
}

func fallbackOffset(department string) decimal.Decimal {
	for k, v := range fallbackOffsets {
		if strings.EqualFold(k, department) {
			return v
		}
	}
	return decimal.Zero
}

func (s *GrokRecommendationService) fallback(expenses map[string]decimal.Decimal, marginPct decimal.Decimal) *RateRecommendation {
	rates := make(map[string]decimal.Decimal, len(expenses))
	var parts []string
	for _, n := range sortedNames(expenses) {
		rates[n] = FallbackRate(n, expenses[n], marginPct)
		parts = append(parts, fmt.Sprintf("%s +%s%%", n, fallbackOffset(n).Mul(hundred).String()))
	}
	explanation := fmt.Sprintf(
		"AI 服务暂不可用，以下费率按内置公式计算：费率 = 支出 × (1 + 利润率 %s%%) × (1 + 部门调整)。各部门调整：%s。",
		marginPct.String(), strings.Join(parts, "、"))
	return &RateRecommendation{
		Rates:        rates,
		Explanation:  explanation,
		FromFallback: true,
		GeneratedAt:  s.now(),
	}
}
