package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldops/adminctl/pkg/api"
)

// ErrUnauthorized сигнализирует явный отказ в аутентификации (HTTP 401).
// Цепочка bootstrap различает его и прочие сбои (сеть, таймаут, 5xx).
var ErrUnauthorized = errors.New("unauthorized")

// TokenSource отдает текущий access token для исходящих запросов.
// Пустая строка означает "запрос уходит без авторизации".
type TokenSource interface {
	AccessToken() string
}

// Client представляет HTTP клиент для удаленного FieldOps API
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
}

// NewClient создает новый API клиент.
// tokens может быть nil - тогда запросы уходят без bearer-токена.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовок Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Login выполняет аутентификацию оператора
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Me возвращает профиль текущего пользователя ("who am I")
func (c *Client) Me(ctx context.Context) (*api.User, error) {
	var user api.User
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/auth/me", nil, &user); err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	return &user, nil
}

// Refresh обменивает refresh token на новый access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.RefreshResponse, error) {
	var resp api.RefreshResponse
	req := api.RefreshRequest{RefreshToken: refreshToken}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", req, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout инвалидирует серверную сессию (best effort)
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос и разворачивает конверт {success, data|error}
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Присоединяем bearer-токен, если он есть.
	// Отсутствие токена не ошибка: сервер сам ответит 401.
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, errorMessage(respBody))
	}

	var envelope api.Response
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response envelope: %w", err)
	}

	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("server rejected request: %s", envelope.Error.Message)
		}
		return fmt.Errorf("server rejected request")
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// errorMessage пытается достать сообщение из конверта ошибки
func errorMessage(body []byte) string {
	var envelope api.Response
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}
