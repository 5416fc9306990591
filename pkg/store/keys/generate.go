package keys

import "fmt"

// GenConversationKey builds the storage key for one owner's conversation payload.
func GenConversationKey(ownerKey string) (string, error) {
	if err := ValidateOwnerKey(ownerKey); err != nil {
		return "", err
	}
	return fmt.Sprintf(ConversationKey, ownerKey), nil
}

// GenGuestOwnerKey builds the owner key for a guest session id.
func GenGuestOwnerKey(sessionID string) string {
	return OwnerGuestPrefix + sessionID
}

// GenUserOwnerKey builds the owner key for an authenticated user id.
func GenUserOwnerKey(userID string) string {
	return OwnerUserPrefix + userID
}

// GenUserSessionID builds the backend session id for an authenticated user.
func GenUserSessionID(userID string) string {
	return "user_" + userID
}
