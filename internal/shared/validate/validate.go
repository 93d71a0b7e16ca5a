package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxUsernameLength = 64
	MinUsernameLength = 3
	MaxIDLength       = 128
	MaxTitleLength    = 256
	MaxBodyLength     = 16 * 1024
	MaxBioLength      = 2048
	MaxBatchIDs       = 100
)

// Regular expressions for validation
var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// UsernamePattern allows alphanumeric and underscores
	UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// profileFields is the set of profile columns a client may update.
var profileFields = map[string]bool{
	"display_name": true,
	"bio":          true,
	"avatar_url":   true,
}

// String validates a string field with length and content checks.
func String(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Null bytes never belong in user input.
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ID validates an identifier path or body parameter.
func ID(id, fieldName string) error {
	if err := String(id, fieldName, 1, MaxIDLength, true); err != nil {
		return err
	}
	if !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}
	return nil
}

// Username validates a username.
func Username(username string) error {
	if err := String(username, "username", MinUsernameLength, MaxUsernameLength, true); err != nil {
		return err
	}
	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only alphanumeric and underscores allowed)")
	}
	return nil
}

// IDList validates a batch of identifiers.
func IDList(ids []string, fieldName string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(ids) > MaxBatchIDs {
		return fmt.Errorf("%s exceeds maximum of %d entries", fieldName, MaxBatchIDs)
	}
	for _, id := range ids {
		if err := ID(id, fieldName); err != nil {
			return err
		}
	}
	return nil
}

// ProfileFields checks a profile update against the updatable column set
// and per-field limits. Unknown fields are rejected rather than dropped so
// a client typo never silently loses a write.
func ProfileFields(fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}

	for name, value := range fields {
		if !profileFields[name] {
			return fmt.Errorf("field %q is not updatable", name)
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string", name)
		}
		switch name {
		case "bio":
			if err := String(s, name, 0, MaxBioLength, false); err != nil {
				return err
			}
		default:
			if err := String(s, name, 0, MaxTitleLength, false); err != nil {
				return err
			}
		}
	}
	return nil
}
