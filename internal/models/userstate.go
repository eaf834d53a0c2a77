package models

// ConversationState represents the state of a conversation with a user
type ConversationState int

const (
	// Default is the initial state
	Default ConversationState = iota
	// AwaitingInboundSelection is the state when the user is picking an inbound for a new config
	AwaitingInboundSelection
	// AwaitingConfigName is the state when the user is inputting a name for a new config
	AwaitingConfigName
	// AwaitingTrafficAmount is the state when the user is inputting the traffic limit for a new config
	AwaitingTrafficAmount
	// AwaitingExpiryDays is the state when the user is inputting the expiry in days for a new config
	AwaitingExpiryDays
	// AwaitConfirmConfigCreation is the state when the user is confirming the new config
	AwaitConfirmConfigCreation
	// AwaitingConfigSelection is the state when the user is selecting one of their configs
	AwaitingConfigSelection
	// AwaitingConfigAction is the state when the user is choosing an action for a config
	AwaitingConfigAction
	// AwaitingExtendDays is the state when the user is inputting extension days
	AwaitingExtendDays
	// AwaitConfirmConfigDeletion is the state when the user is confirming config deletion
	AwaitConfirmConfigDeletion
	// AwaitingNewUserID is the state when an admin is inputting a new user's Telegram ID
	AwaitingNewUserID
	// AwaitingBlockUserID is the state when an admin is inputting a user ID to block
	AwaitingBlockUserID
	// AwaitingUnblockUserID is the state when an admin is inputting a user ID to unblock
	AwaitingUnblockUserID
	// AwaitingLimitUserID is the state when an admin is inputting a user ID to set a limit for
	AwaitingLimitUserID
	// AwaitingLimitValue is the state when an admin is inputting a traffic limit in GB
	AwaitingLimitValue
)

// UserState represents the state of a user's conversation
type UserState struct {
	State   ConversationState
	Payload *string
}
