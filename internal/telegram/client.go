// Package telegram реализует минимальный клиент Telegram Bot API
// для методов управления каналами и отправки сообщений.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	token      string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент Bot API. baseURL обычно
// "https://api.telegram.org"; в тестах подменяется на локальный сервер.
func NewClient(token, baseURL string) *Client {
	return &Client{
		token:      token,
		apiURL:     baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%s: api error %d: %s", method, apiResp.ErrorCode, apiResp.Description)
	}
	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetChatMember возвращает статус пользователя в чате.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	var member ChatMember
	err := c.call(ctx, "getChatMember", getChatMemberRequest{ChatID: chatID, UserID: userID}, &member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// CreateChatInviteLink запрашивает новую пригласительную ссылку без
// подтверждения заявок. memberLimit > 0 ограничивает число вступлений
// по ссылке.
func (c *Client) CreateChatInviteLink(ctx context.Context, chatID int64, memberLimit int) (*ChatInviteLink, error) {
	var link ChatInviteLink
	err := c.call(ctx, "createChatInviteLink", createChatInviteLinkRequest{
		ChatID:             chatID,
		MemberLimit:        memberLimit,
		CreatesJoinRequest: false,
	}, &link)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// BanChatMember удаляет пользователя из чата.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", banChatMemberRequest{ChatID: chatID, UserID: userID}, nil)
}

// UnbanChatMember снимает бан, чтобы пользователь мог вернуться по новой
// ссылке.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "unbanChatMember", unbanChatMemberRequest{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	}, nil)
}

// SendMessage отправляет личное сообщение пользователю.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, nil)
}
