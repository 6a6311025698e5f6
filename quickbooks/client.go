package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"wileywidget/config"
	"wileywidget/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// ErrNotConfigured 未启用或缺少 realm / token
	ErrNotConfigured = errors.New("QuickBooks 未配置")
	// ErrUnauthorized 刷新令牌后仍未通过认证
	ErrUnauthorized = errors.New("QuickBooks 认证失败")
)

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("QuickBooks 返回 %d: %s", e.StatusCode, e.Message)
}

// decodeError 请求构造或响应解析失败，不重试
type decodeError struct{ err error }

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

const defaultPageSize = 1000

// Client QuickBooks Online v3 REST 客户端
type Client struct {
	cfg        config.QuickBooksConfig
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu           sync.RWMutex
	accessToken  string
	refreshToken string

	retryInterval time.Duration
	pageSize      int
}

// NewClient 创建客户端
func NewClient(cfg config.QuickBooksConfig, l *zap.Logger, m *metrics.Metrics) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        l.Named("quickbooks"),
		metrics:       m,
		accessToken:   cfg.AccessToken,
		refreshToken:  cfg.RefreshToken,
		retryInterval: 500 * time.Millisecond,
		pageSize:      defaultPageSize,
	}
}

// Enabled 是否可用：已启用且配置了 realm 和令牌
func (c *Client) Enabled() bool {
	if c == nil || !c.cfg.Enabled || c.cfg.RealmID == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken != "" || c.refreshToken != ""
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// RefreshToken 使用 refresh_token 换取新的 access_token
// 接口要求 application/x-www-form-urlencoded 并使用 Basic 认证
func (c *Client) RefreshToken(ctx context.Context) (*TokenResponse, error) {
	c.mu.RLock()
	refresh := c.refreshToken
	c.mu.RUnlock()
	if refresh == "" || c.cfg.TokenURL == "" {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求令牌服务失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 刷新令牌返回 %d: %s", ErrUnauthorized, resp.StatusCode, string(data))
	}

	var tok TokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: 响应中无 access_token", ErrUnauthorized)
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.mu.Unlock()
	c.logger.Info("QuickBooks 令牌已刷新", zap.Int("expires_in", tok.ExpiresIn))
	return &tok, nil
}

// QueryJournalEntries 查询日期区间内的日记账分录
func (c *Client) QueryJournalEntries(ctx context.Context, from, to time.Time) ([]JournalEntry, error) {
	var all []JournalEntry
	err := c.paged(ctx, "JournalEntry", from, to, func(r *queryResponse) int {
		all = append(all, r.QueryResponse.JournalEntry...)
		return len(r.QueryResponse.JournalEntry)
	})
	return all, err
}

// QueryPurchases 查询日期区间内的支出交易
func (c *Client) QueryPurchases(ctx context.Context, from, to time.Time) ([]Purchase, error) {
	var all []Purchase
	err := c.paged(ctx, "Purchase", from, to, func(r *queryResponse) int {
		all = append(all, r.QueryResponse.Purchase...)
		return len(r.QueryResponse.Purchase)
	})
	return all, err
}

// paged 按 STARTPOSITION 翻页，直到返回条数不足一页
func (c *Client) paged(ctx context.Context, entity string, from, to time.Time, collect func(*queryResponse) int) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if to.Before(from) {
		return fmt.Errorf("结束日期不能早于开始日期")
	}
	start := 1
	for {
		q := fmt.Sprintf("SELECT * FROM %s WHERE TxnDate >= '%s' AND TxnDate <= '%s' STARTPOSITION %d MAXRESULTS %d",
			entity, formatDate(from), formatDate(to), start, c.pageSize)
		resp, err := c.query(ctx, q)
		if err != nil {
			return err
		}
		n := collect(resp)
		if n < c.pageSize {
			return nil
		}
		start += n
	}
}

// query 执行查询：401 刷新令牌后重放一次，5xx 与网络错误按指数退避重试，其余 4xx 不重试
func (c *Client) query(ctx context.Context, q string) (*queryResponse, error) {
	started := time.Now()
	var result *queryResponse
	refreshed := false

	op := func() error {
		r, err := c.doQuery(ctx, q)
		if err == nil {
			result = r
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) {
			switch {
			case se.StatusCode == http.StatusUnauthorized && !refreshed:
				refreshed = true
				if _, rerr := c.RefreshToken(ctx); rerr != nil {
					return backoff.Permanent(rerr)
				}
				r, err = c.doQuery(ctx, q)
				if err == nil {
					result = r
					return nil
				}
				if errors.As(err, &se) && se.StatusCode >= 500 {
					return err
				}
				return backoff.Permanent(err)
			case se.StatusCode == http.StatusUnauthorized:
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrUnauthorized, se.Message))
			case se.StatusCode >= 500:
				return err
			default:
				return backoff.Permanent(err)
			}
		}
		var de *decodeError
		if errors.As(err, &de) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		// 网络错误可重试
		return err
	}

	err := backoff.Retry(op, c.newBackOff(ctx))
	outcome := "success"
	if err != nil {
		outcome = "error"
		c.logger.Warn("QuickBooks 查询失败", zap.String("query", q), zap.Error(err))
	}
	c.metrics.ObserveExternal("quickbooks", outcome, time.Since(started))
	return result, err
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = 10 * c.retryInterval
	b.MaxElapsedTime = 0
	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (c *Client) doQuery(ctx context.Context, q string) (*queryResponse, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.PathEscape(c.cfg.RealmID),
		url.Values{"query": {q}, "minorversion": {"65"}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &decodeError{fmt.Errorf("创建请求失败: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 QuickBooks 失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var parsed queryResponse
	jsonErr := json.Unmarshal(data, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if jsonErr == nil && parsed.Fault != nil {
			msg = parsed.Fault.message()
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return nil, &decodeError{fmt.Errorf("解析响应失败: %w", jsonErr)}
	}
	if parsed.Fault != nil {
		return nil, &StatusError{StatusCode: http.StatusBadRequest, Message: parsed.Fault.message()}
	}
	return &parsed, nil
}
