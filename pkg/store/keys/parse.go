package keys

import (
	"fmt"
	"strings"
)

// ValidateOwnerKey checks the owner key shape: "guest:<session>" or "user:<id>"
// with a non-empty suffix and no further ":" that would break key namespacing.
func ValidateOwnerKey(ownerKey string) error {
	var rest string
	switch {
	case strings.HasPrefix(ownerKey, OwnerGuestPrefix):
		rest = ownerKey[len(OwnerGuestPrefix):]
	case strings.HasPrefix(ownerKey, OwnerUserPrefix):
		rest = ownerKey[len(OwnerUserPrefix):]
	default:
		return fmt.Errorf("invalid owner key %q: unknown prefix", ownerKey)
	}
	if rest == "" {
		return fmt.Errorf("invalid owner key %q: empty identifier", ownerKey)
	}
	if strings.Contains(rest, ":") {
		return fmt.Errorf("invalid owner key %q: identifier contains ':'", ownerKey)
	}
	return nil
}

// ParseConversationKey extracts the owner key from a conversation storage key.
func ParseConversationKey(key string) (string, error) {
	if !strings.HasPrefix(key, ConversationPrefix) {
		return "", fmt.Errorf("not a conversation key: %q", key)
	}
	owner := key[len(ConversationPrefix):]
	if err := ValidateOwnerKey(owner); err != nil {
		return "", err
	}
	return owner, nil
}

// IsGuestOwner reports whether the owner key names a guest namespace.
func IsGuestOwner(ownerKey string) bool {
	return strings.HasPrefix(ownerKey, OwnerGuestPrefix)
}
