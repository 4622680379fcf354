package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(method string, body map[string]any) (int, string)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		// путь вида /bot<token>/<method>
		method := r.URL.Path[len("/bottest-token/"):]

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		status, resp := handler(method, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
}

func TestGetChatMember(t *testing.T) {
	srv := newTestServer(t, func(method string, body map[string]any) (int, string) {
		assert.Equal(t, "getChatMember", method)
		assert.Equal(t, float64(-1001), body["chat_id"])
		assert.Equal(t, float64(42), body["user_id"])
		return http.StatusOK, `{"ok":true,"result":{"status":"kicked","user":{"id":42}}}`
	})
	defer srv.Close()

	client := NewClient("test-token", srv.URL)
	member, err := client.GetChatMember(context.Background(), -1001, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusKicked, member.Status)
	assert.Equal(t, int64(42), member.User.ID)
}

func TestGetChatMember_APIError(t *testing.T) {
	srv := newTestServer(t, func(_ string, _ map[string]any) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: user not found"}`
	})
	defer srv.Close()

	client := NewClient("test-token", srv.URL)
	member, err := client.GetChatMember(context.Background(), -1001, 42)
	assert.Error(t, err)
	assert.Nil(t, member)
	assert.Contains(t, err.Error(), "user not found")
}

func TestCreateChatInviteLink(t *testing.T) {
	srv := newTestServer(t, func(method string, body map[string]any) (int, string) {
		assert.Equal(t, "createChatInviteLink", method)
		assert.Equal(t, float64(-1002), body["chat_id"])
		assert.Equal(t, float64(1), body["member_limit"])
		assert.Equal(t, false, body["creates_join_request"])
		return http.StatusOK, `{"ok":true,"result":{"invite_link":"https://t.me/+abc","creates_join_request":false}}`
	})
	defer srv.Close()

	client := NewClient("test-token", srv.URL)
	link, err := client.CreateChatInviteLink(context.Background(), -1002, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/+abc", link.InviteLink)
}

func TestUnbanChatMember_OnlyIfBanned(t *testing.T) {
	srv := newTestServer(t, func(method string, body map[string]any) (int, string) {
		assert.Equal(t, "unbanChatMember", method)
		assert.Equal(t, true, body["only_if_banned"])
		return http.StatusOK, `{"ok":true,"result":true}`
	})
	defer srv.Close()

	client := NewClient("test-token", srv.URL)
	require.NoError(t, client.UnbanChatMember(context.Background(), -1002, 42))
}

func TestSendMessage(t *testing.T) {
	srv := newTestServer(t, func(method string, body map[string]any) (int, string) {
		assert.Equal(t, "sendMessage", method)
		assert.Equal(t, float64(42), body["chat_id"])
		assert.Equal(t, "hello", body["text"])
		return http.StatusOK, `{"ok":true,"result":{}}`
	})
	defer srv.Close()

	client := NewClient("test-token", srv.URL)
	require.NoError(t, client.SendMessage(context.Background(), 42, "hello"))
}
