package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"clinic-deploy/internal/domain"
)

const (
	executeSQLPath = "/rest/v1/rpc/execute_sql"
	execPath       = "/rest/v1/rpc/exec"
	restRootPath   = "/rest/v1/"

	execTimeout = 60 * time.Second
	pingTimeout = 10 * time.Second
)

// StatusError は想定外のHTTPステータスを表す。
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// SupabaseClient はSupabaseのREST API経由でSQLを実行するクライアント。
type SupabaseClient struct {
	baseURL    string
	serviceKey string
	execClient *http.Client
	pingClient *http.Client
}

// NewSupabaseClient は新しいSupabaseClientを生成する。
func NewSupabaseClient(baseURL, serviceKey string) (*SupabaseClient, error) {
	if serviceKey == "" {
		return nil, domain.ErrMissingServiceKey
	}
	return &SupabaseClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		execClient: NewHTTPClient(execTimeout, nil),
		pingClient: NewHTTPClient(pingTimeout, nil),
	}, nil
}

// ExecuteSQL はRPC関数 execute_sql でステートメントを実行する。成功はHTTP 200のみ。
func (c *SupabaseClient) ExecuteSQL(ctx context.Context, statement string) (string, error) {
	return c.post(ctx, executeSQLPath, map[string]string{"query": statement}, nil, http.StatusOK)
}

// Exec はフォールバック用のRPC関数 exec でステートメントを実行する。
func (c *SupabaseClient) Exec(ctx context.Context, statement string) (string, error) {
	headers := map[string]string{"Prefer": "return=minimal"}
	return c.post(ctx, execPath, map[string]string{"sql": statement}, headers,
		http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// Ping はREST APIのルートにアクセスして接続を確認する。状態は変更しない。
func (c *SupabaseClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+restRootPath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)

	resp, err := c.pingClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", restRootPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Endpoint: restRootPath, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *SupabaseClient) post(ctx context.Context, path string, payload any, headers map[string]string, accepted ...int) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.execClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if !slices.Contains(accepted, resp.StatusCode) {
		return "", &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return string(respBody), nil
}

func (c *SupabaseClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
}
