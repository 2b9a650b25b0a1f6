// Package models defines the core data structures for CoachFlow.
//
// It includes user records, classified intents, action items and tracker
// records, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// FlowStage identifies which conversation template a user is currently in.
type FlowStage string

const (
	// StageGeneral is the default free-form coaching conversation.
	StageGeneral FlowStage = "general"
	// StageOnboarding collects goals and background from a new client.
	StageOnboarding FlowStage = "onboarding"
	// StageCheckinMonday is the Monday accountability check-in conversation.
	StageCheckinMonday FlowStage = "checkin_monday"
	// StageCheckinWednesday is the Wednesday check-in conversation.
	StageCheckinWednesday FlowStage = "checkin_wednesday"
)

// IsValidFlowStage checks if the given flow stage is supported.
func IsValidFlowStage(s FlowStage) bool {
	switch s {
	case StageGeneral, StageOnboarding, StageCheckinMonday, StageCheckinWednesday:
		return true
	default:
		return false
	}
}

// CheckinType distinguishes the two weekly check-in conversations.
type CheckinType string

const (
	CheckinMonday    CheckinType = "monday"
	CheckinWednesday CheckinType = "wednesday"
)

// Stage maps a check-in type to its flow stage.
func (c CheckinType) Stage() FlowStage {
	if c == CheckinWednesday {
		return StageCheckinWednesday
	}
	return StageCheckinMonday
}

// Error variables for better error handling and testability
var (
	ErrEmptySubscriberID = errors.New("subscriber id cannot be empty")
	ErrEmptyHandle       = errors.New("handle cannot be empty")
	ErrUserNotFound      = errors.New("user record not found")
	ErrEmptyReply        = errors.New("reply text cannot be empty")
)

// ConversationRole identifies the author of a history entry.
type ConversationRole string

const (
	RoleUser ConversationRole = "user"
	RoleAI   ConversationRole = "ai"
)

// ConversationEntry is a single message in a user's conversation history.
// Entries are append-only; insertion order is chronological order.
type ConversationEntry struct {
	Timestamp time.Time        `json:"timestamp"`
	Role      ConversationRole `json:"role"`
	Text      string           `json:"text"`
}

// ActionItemStatus represents the lifecycle of an audit entry.
type ActionItemStatus string

const (
	// ActionItemPending means a human operator still needs to review the item.
	ActionItemPending ActionItemStatus = "pending"
	// ActionItemCompleted means the underlying work finished successfully.
	ActionItemCompleted ActionItemStatus = "completed"
)

// ActionItem is a work-queue/audit entry consumed by a human operator.
// The log is append-only; items are never deleted.
type ActionItem struct {
	ID          int64            `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Handle      string           `json:"handle"`
	ClientName  string           `json:"client_name"`
	Description string           `json:"description"`
	Status      ActionItemStatus `json:"status"`
}

// PendingKind marks which handler should consume the next media message from
// a user instead of re-running intent classification.
type PendingKind string

const (
	// PendingFormCheck routes the next video to the form-check handler.
	PendingFormCheck PendingKind = "form_check"
	// PendingFoodAnalysis routes the next image to the food-analysis handler.
	PendingFoodAnalysis PendingKind = "food_analysis"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusAccepted indicates a webhook event was accepted for processing.
	APIStatusAccepted APIStatus = "accepted"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Accepted creates an accepted API response for webhook events.
func Accepted(message string) APIResponse {
	return APIResponse{Status: string(APIStatusAccepted), Message: message}
}

// WebhookMedia describes an attachment on an inbound message.
type WebhookMedia struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"` // declared type: image, video, audio
}

// WebhookPayload is the inbound event body from the chat-automation platform.
// Field names follow the platform's custom-field conventions; username and
// message content are resolved through ordered fallbacks (see api package).
type WebhookPayload struct {
	SubscriberID string         `json:"subscriber_id"`
	Username     string         `json:"ig_username,omitempty"`
	CustomUser   string         `json:"custom_field_username,omitempty"`
	ProfileName  string         `json:"name,omitempty"`
	LastInput    string         `json:"last_input_text,omitempty"`
	MessageText  string         `json:"message_text,omitempty"`
	Media        *WebhookMedia  `json:"media,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// Validate checks the minimum webhook contract: a resolvable subscriber id.
func (p *WebhookPayload) Validate() error {
	if p.SubscriberID == "" {
		return ErrEmptySubscriberID
	}
	return nil
}
