package flow

import (
	"fmt"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAPIKeyMissing is returned by StartSearchFlow when no api key is stored for the
	// provider. Callers prompt for a key and retry.
	ErrAPIKeyMissing = errors.New("api key missing")
	// ErrAnswersClosed is returned when a choice arrives after the answers were submitted.
	ErrAnswersClosed = errors.New("answers were already submitted")
)

const (
	msgAnalyzing        = "Analyzing your query and preparing clarification questions..."
	msgSearching        = "Searching the web and generating comprehensive results..."
	msgNoQuestions      = "No clarification questions were needed. Submit to start the search."
	msgCompletedEarly   = "Search completed immediately - this is unexpected. Please check results."
	msgSearchIncomplete = "Search could not be completed."
	msgNoResults        = "No search results found for your query. Try adjusting your search terms."
	msgPollFailed       = "Error retrieving results. Please try again."
	msgInvalidKey       = "Please make sure your API key is valid and try again."
	msgStartFailed      = "Sorry, there was an error starting your search. Please try again."
	msgSubmitFailed     = "Error processing your search. Please try again."
)

func processingMessage(answered, skipped int) string {
	if skipped > 0 {
		return fmt.Sprintf("Processing %d answers (%d skipped)...", answered, skipped)
	}
	return fmt.Sprintf("Processing %d answers...", answered)
}

func searchErrorMessage(text string) string {
	return "Search error: " + text
}

func foundSourcesMessage(n int) string {
	return fmt.Sprintf("Found %d relevant sources:", n)
}

// describeStartError turns a StartSearch failure into the text shown to the user.
func describeStartError(err error) string {
	var apiErr *searchapi.APIError
	if !errors.As(err, &apiErr) {
		log.Error().Err(err).Msg("start search failed")
		return msgStartFailed
	}
	log.Error().
		Err(err).
		Int("status", apiErr.StatusCode).
		Str("body", string(apiErr.Body)).
		Msg("start search rejected")
	for i, d := range apiErr.Detail {
		log.Error().Int("index", i+1).RawJSON("detail", d).Msg("validation error")
	}
	switch {
	case apiErr.HasSignal(searchapi.SignalNoRelatedQuestions):
		return msgInvalidKey
	case apiErr.Message != "":
		return searchErrorMessage(apiErr.Message)
	default:
		return msgStartFailed
	}
}

func describeSubmitError(err error) string {
	var apiErr *searchapi.APIError
	if !errors.As(err, &apiErr) {
		log.Error().Err(err).Msg("submit answers failed")
		return msgSubmitFailed
	}
	log.Error().
		Err(err).
		Int("status", apiErr.StatusCode).
		Str("body", string(apiErr.Body)).
		Msg("submit answers rejected")
	if apiErr.Message != "" {
		return searchErrorMessage(apiErr.Message)
	}
	return msgSubmitFailed
}
