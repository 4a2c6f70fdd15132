package errs

import (
	"fmt"

	"github.com/and161185/lanxat/internal/model"
)

// ProfileNotExistsError reports that storage has no profile for the user.
type ProfileNotExistsError struct {
	UserID int64
}

func (e *ProfileNotExistsError) Error() string {
	return fmt.Sprintf("profile doesn't exist for userId %d", e.UserID)
}

// ProfileNotEnabledError reports an existing profile that has neither credential nor enabled flag.
// The loaded profile is carried so onboarding commands can complete it.
type ProfileNotEnabledError struct {
	Profile *model.UserProfile
}

func (e *ProfileNotEnabledError) Error() string {
	return fmt.Sprintf("profile not enabled for userId %d", e.Profile.ID)
}

// LangConfigNotExistsError reports a named config missing from the profile.
type LangConfigNotExistsError struct {
	Name string
}

func (e *LangConfigNotExistsError) Error() string {
	return fmt.Sprintf("lang config %s doesn't exist", e.Name)
}

// TranslationError reports a failed or unusable provider call.
type TranslationError struct {
	Msg string
	Err error
}

func (e *TranslationError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *TranslationError) Unwrap() error { return e.Err }

// InlineQueryError ties any pipeline error to the inline query it originated from,
// so the answer can be targeted back to the same query id.
type InlineQueryError struct {
	QueryID string
	Err     error
}

func (e *InlineQueryError) Error() string {
	return fmt.Sprintf("inline query %s: %v", e.QueryID, e.Err)
}

func (e *InlineQueryError) Unwrap() error { return e.Err }
