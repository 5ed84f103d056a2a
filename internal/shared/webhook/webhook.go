package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client 外部推送Webhook客户端
// 用于把站内通知同步推送到外部IM/告警通道，失败由调用方记录日志
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient 创建Webhook客户端，url为空时返回nil表示未配置
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Message 推送消息体
type Message struct {
	MsgID    string `json:"msg_id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority string `json:"priority,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
	SentAt   string `json:"sent_at"`
}

// Send 推送一条消息
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.MsgID == "" {
		msg.MsgID = uuid.New().String()
	}
	if msg.SentAt == "" {
		msg.SentAt = time.Now().Format(time.RFC3339)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
