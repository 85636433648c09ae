package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/achievements/internal/achievement"
)

// pushEnvelope is the body of a Pub/Sub push delivery. Data holds the
// event JSON, base64 encoded on the wire.
type pushEnvelope struct {
	Message *struct {
		Data      []byte `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodeEvent accepts either a bare event or a push envelope wrapping one.
func DecodeEvent(body []byte) (achievement.Input, error) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return achievement.Input{}, fmt.Errorf("decode body: %w", err)
	}
	if env.Message == nil {
		return achievement.DecodeInput(body)
	}
	if len(env.Message.Data) == 0 {
		return achievement.Input{}, errors.New("push message has no data")
	}
	in, err := achievement.DecodeInput(env.Message.Data)
	if err != nil {
		return achievement.Input{}, fmt.Errorf("message %s: %w", env.Message.MessageID, err)
	}
	return in, nil
}
