package errors

import "errors"

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 认证相关错误。
var (
	Unauthorized  = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	InvalidOrgID  = Definition{Code: "INVALID_ORG_ID", Message: "Invalid organization ID format"}
	InvalidUserID = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format"}
)

// 营销活动模块错误。
var (
	CampaignNotFound       = Definition{Code: "CAMPAIGN_NOT_FOUND", Message: "Campaign not found"}
	CampaignAlreadySending = Definition{Code: "CAMPAIGN_ALREADY_SENDING", Message: "Campaign already sending"}
	CampaignNotCancellable = Definition{Code: "CAMPAIGN_NOT_CANCELLABLE", Message: "Only scheduled campaigns can be cancelled"}
	CampaignDeleteSending  = Definition{Code: "CAMPAIGN_DELETE_SENDING", Message: "Campaign cannot be deleted while sending"}
	CampaignListsEmpty     = Definition{Code: "CAMPAIGN_LISTS_EMPTY", Message: "Campaign needs at least one contact list"}
)

// 模板与联系人列表错误。
var (
	TemplateNotFound    = Definition{Code: "TEMPLATE_NOT_FOUND", Message: "Message template not found"}
	ListNotFound        = Definition{Code: "LIST_NOT_FOUND", Message: "Contact list not found"}
	ListChannelMismatch = Definition{Code: "LIST_CHANNEL_MISMATCH", Message: "Contact list channel does not match template channel"}
)

// 发送账号错误。
var (
	AccountNotConnected = Definition{Code: "ACCOUNT_NOT_CONNECTED", Message: "Account not connected to your organization"}
)

// token 包使用的哨兵错误。
var (
	ErrTokenGeneratorNotInitialized = errors.New("token generator is not initialized")
	ErrUnexpectedSigningMethod      = errors.New("unexpected signing method")
	ErrInvalidToken                 = errors.New("invalid token")
	ErrInvalidTokenClaims           = errors.New("invalid token claims")
	ErrInvalidTokenType             = errors.New("invalid token type")
	ErrIdentityNotFound             = errors.New("identity claim not found in token")
)

// SkipMessageError 表示消费者应当 Ack 并跳过这条消息（如幂等重复）。
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return e.Reason
}
