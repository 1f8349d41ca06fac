package query

import (
	"fmt"
	"strings"
)

// DescriptionPlaceholder marks where the zone description goes in a prompt template.
const DescriptionPlaceholder = "{description}"

// DefaultPromptTemplate asks about the zone and the master plan articles covering it.
const DefaultPromptTemplate = "What is {description} and which articles discuss it in the master plan?"

// DefaultFailureMessage is shown when the remote query fails.
const DefaultFailureMessage = "Error loading, try again."

// DefaultLoadingMessage is shown while the remote query is in flight.
const DefaultLoadingMessage = "Loading master plan information about the selected zone..."

// ValidateTemplate checks the template has exactly one description slot.
func ValidateTemplate(tmpl string) error {
	if n := strings.Count(tmpl, DescriptionPlaceholder); n != 1 {
		return fmt.Errorf("prompt template must contain %s exactly once, found %d", DescriptionPlaceholder, n)
	}
	return nil
}

// BuildPrompt formats the question for a zone description.
func BuildPrompt(tmpl, description string) string {
	return strings.Replace(tmpl, DescriptionPlaceholder, description, 1)
}
