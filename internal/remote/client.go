package remote

import (
	"bytes"
	"coder_edu_sync/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// envelope 网关统一响应结构 {code, message, data}
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// StatusError 网关返回的非 2xx 响应
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote status %d: %s", e.StatusCode, e.Message)
}

// IsAuth 401/403：凭证问题，重试无意义，由调用方决定如何处理
func (e *StatusError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsTransient 5xx、408、429 可以稍后重试
func (e *StatusError) IsTransient() bool {
	return e.StatusCode >= 500 ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests
}

// IsPermanent 其余 4xx：请求本身有问题，重放同样的载荷不会成功
func (e *StatusError) IsPermanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && !e.IsAuth() && !e.IsTransient()
}

// Client 调用学习平台网关的幂等 upsert 接口
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) UpsertProgress(ctx context.Context, req model.ProgressUpsert) (*model.ModuleProgress, error) {
	var progress model.ModuleProgress
	if err := c.do(ctx, http.MethodPut, "/api/progress", req, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (c *Client) UpsertTodoProgress(ctx context.Context, req model.TodoUpsert) (*model.TodoProgress, error) {
	var todo model.TodoProgress
	if err := c.do(ctx, http.MethodPut, "/api/todo-progress", req, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// FetchModuleContent 拉取模块离线内容包，内容对客户端不透明
func (c *Client) FetchModuleContent(ctx context.Context, moduleID string) (json.RawMessage, error) {
	var content json.RawMessage
	path := "/api/modules/" + url.PathEscape(moduleID) + "/offline"
	if err := c.do(ctx, http.MethodGet, path, nil, &content); err != nil {
		return nil, err
	}
	return content, nil
}

// Ping 探测网关是否可达，供连通性探测使用
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return err
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			statusErr.Message = env.Message
		}
		return statusErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
