// Package probe はクリニックAPIに対するブラックボックスのスモークテスト（プローブ）を提供する。
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"clinic-deploy/internal/infra"
)

// Credentials はプローブが使う資格情報。
type Credentials struct {
	Email    string
	Password string
}

// AuthMode はリクエストに付与する認証方式を表す。
type AuthMode int

const (
	// AuthNone は資格情報を付与しない（Cookieジャーのみ）。
	AuthNone AuthMode = iota
	// AuthBasic はBasic認証ヘッダーを付与する。
	AuthBasic
	// AuthBearer はログインで得たトークンをBearerヘッダーとして付与する。
	AuthBearer
)

// Client はシナリオ単位で使うHTTPクライアント。Cookieジャーを持ち、シナリオ内で再利用する。
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	mode    AuthMode
	token   string
}

// NewClient は新しいClientを生成する。
func NewClient(baseURL string, timeout time.Duration, creds Credentials) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    infra.NewHTTPClient(timeout, jar),
		creds:   creds,
	}, nil
}

// UseAuth は以降のリクエストで使う認証方式を切り替える。
func (c *Client) UseAuth(mode AuthMode) {
	c.mode = mode
}

// SetToken はBearer認証に使うトークンを設定する。
func (c *Client) SetToken(token string) {
	c.token = token
}

// Response はレスポンスのステータス・ヘッダー・ボディを保持する。
type Response struct {
	Method     string
	Path       string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON はボディをJSONとしてvに読み込む。
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("%s %s: response body is empty", r.Method, r.Path)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%s %s: response is not valid json: %w", r.Method, r.Path, err)
	}
	return nil
}

// Object はボディをJSONオブジェクトとして読み込む。
func (r *Response) Object() (map[string]any, error) {
	var obj map[string]any
	if err := r.JSON(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%s %s: response is not a json object", r.Method, r.Path)
	}
	return obj, nil
}

// Do はリクエストを送信する。bodyがnilでなければJSONとして送る。
// ステータスコードに関わらずレスポンスを返し、トランスポートエラーのみをエラーとする。
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch c.mode {
	case AuthBasic:
		req.SetBasicAuth(c.creds.Email, c.creds.Password)
	case AuthBearer:
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response body: %w", method, path, err)
	}
	return &Response{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Login は資格情報でログインし、セッションCookieを保持したうえでトークンを記録する。
func (c *Client) Login(ctx context.Context, email, password string) (*Response, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		var body struct {
			Token string `json:"token"`
		}
		if err := resp.JSON(&body); err == nil && body.Token != "" {
			c.token = body.Token
		}
	}
	return resp, nil
}
