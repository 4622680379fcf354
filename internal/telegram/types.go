package telegram

import "encoding/json"

// apiResponse общий конверт ответа Bot API.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// Статусы участника чата по Bot API.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
	StatusBanned        = "banned"
)

// ChatMember результат метода getChatMember.
type ChatMember struct {
	Status string `json:"status"`
	User   struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	} `json:"user"`
}

// ChatInviteLink результат метода createChatInviteLink.
type ChatInviteLink struct {
	InviteLink         string `json:"invite_link"`
	Name               string `json:"name"`
	CreatesJoinRequest bool   `json:"creates_join_request"`
}

type getChatMemberRequest struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

type createChatInviteLinkRequest struct {
	ChatID             int64 `json:"chat_id"`
	MemberLimit        int   `json:"member_limit,omitempty"`
	CreatesJoinRequest bool  `json:"creates_join_request"`
}

type banChatMemberRequest struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

type unbanChatMemberRequest struct {
	ChatID       int64 `json:"chat_id"`
	UserID       int64 `json:"user_id"`
	OnlyIfBanned bool  `json:"only_if_banned"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}
