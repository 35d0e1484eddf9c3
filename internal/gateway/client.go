package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"Outreachly/config"
)

// 网关是 Unipile 风格的多渠道消息 API
// 邮件与聊天消息都走 multipart 表单，鉴权用 X-API-KEY 头

var (
	defaultClient *Client
	clientOnce    sync.Once
)

// Default 返回按配置构造的共享客户端
func Default() *Client {
	clientOnce.Do(func() {
		defaultClient = New(
			config.Cfg.UnipileDSN,
			config.Cfg.UnipileAPIKey,
			time.Duration(config.Cfg.UnipileTimeoutSeconds)*time.Second,
		)
	})

	return defaultClient
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GatewayError 网关返回的非 2xx 响应
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.StatusCode, e.Body)
}

type Recipient struct {
	DisplayName string `json:"display_name"`
	Identifier  string `json:"identifier"`
}

type SendEmailParams struct {
	AccountID       string
	To              []Recipient
	Subject         string
	Body            string
	AttachmentPaths []string
}

// SendEmail 通过指定账号发送一封邮件
func (c *Client) SendEmail(ctx context.Context, params SendEmailParams) error {
	toJSON, err := json.Marshal(params.To)
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		"account_id": params.AccountID,
		"to":         string(toJSON),
		"subject":    params.Subject,
		"body":       params.Body,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if err := appendAttachments(form, params.AttachmentPaths); err != nil {
		return err
	}

	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to close multipart form: %w", err)
	}

	return c.post(ctx, "/api/v1/emails", &buf, form.FormDataContentType())
}

// SendChatMessage 往已有会话发送一条消息，WhatsApp 和 LinkedIn 共用
func (c *Client) SendChatMessage(ctx context.Context, chatID, text string, attachmentPaths []string) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if err := form.WriteField("text", text); err != nil {
		return fmt.Errorf("failed to write form field text: %w", err)
	}

	if err := appendAttachments(form, attachmentPaths); err != nil {
		return err
	}

	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to close multipart form: %w", err)
	}

	path := "/api/v1/chats/" + url.PathEscape(chatID) + "/messages"
	return c.post(ctx, path, &buf, form.FormDataContentType())
}

func appendAttachments(form *multipart.Writer, paths []string) error {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open attachment %s: %w", p, err)
		}

		part, err := form.CreateFormFile("attachments", filepath.Base(p))
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to create attachment part: %w", err)
		}

		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return fmt.Errorf("failed to copy attachment %s: %w", p, err)
		}
		f.Close()
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}

	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &GatewayError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	// 响应体按需消费，这里只关心成功与否
	io.Copy(io.Discard, resp.Body)
	return nil
}
