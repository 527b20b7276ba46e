package types

import (
	"regexp"
)

// Compiled once at package initialization; validation runs on every frame.
var (
	userIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	roomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// IsValidUserID checks if a user ID meets format requirements.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRoomName checks if a room name meets format requirements. Room names
// become actor addresses, so the character set is kept as tight as user IDs.
func IsValidRoomName(name string) bool {
	if len(name) < 1 || len(name) > 100 {
		return false
	}
	return roomNameRegex.MatchString(name)
}

// Validate ensures a chat message meets size requirements before it enters
// room history.
func (m *Message) Validate() error {
	if m.Content == "" && len(m.Attachments) == 0 {
		return ErrEmptyContent
	}
	if len(m.Content) > 65536 { // 64KB
		return ErrContentTooLarge
	}
	return nil
}

// Validate ensures an alert envelope carries an attributable creator.
func (a *Alert) Validate() error {
	if a.CreatedBy == nil || a.CreatedBy.ID == "" {
		return ErrMissingAlertSender
	}
	return nil
}
