package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

var ErrMalformedMessage = errors.New("malformed message")

// DecodeRunRequest parses a run request body. An empty JSON object is a valid
// request for a full run.
func DecodeRunRequest(body []byte) (models.RunRequestedEvent, error) {
	var event models.RunRequestedEvent
	if len(body) == 0 {
		return event, fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return event, nil
}
