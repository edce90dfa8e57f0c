package token

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// RefreshExtra is the sentinel stored in a refresh token's extra field.
// It is what distinguishes a refresh token from an access token at
// decode time; there is no separate type tag.
const RefreshExtra = "refresh"

// Payload is the structured content of an access or refresh token. On
// the wire it is the ordered tuple [subject_id, client_id, issued_at_ms,
// extra], encrypted and signed by the Serializer.
type Payload struct {
	SubjectID string
	ClientID  string
	IssuedAt  time.Time
	Extra     any
}

// IsRefresh reports whether the payload carries the refresh sentinel.
func (p Payload) IsRefresh() bool {
	s, ok := p.Extra.(string)
	return ok && s == RefreshExtra
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.SubjectID, p.ClientID, p.IssuedAt.UnixMilli(), p.Extra})
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 4 {
		return errors.Errorf("token payload must have 4 fields, got %d", len(tuple))
	}

	var issuedAtMs int64
	if err := json.Unmarshal(tuple[0], &p.SubjectID); err != nil {
		return errors.Wrap(err, "token payload subject id")
	}
	if err := json.Unmarshal(tuple[1], &p.ClientID); err != nil {
		return errors.Wrap(err, "token payload client id")
	}
	if err := json.Unmarshal(tuple[2], &issuedAtMs); err != nil {
		return errors.Wrap(err, "token payload issued at")
	}
	if err := json.Unmarshal(tuple[3], &p.Extra); err != nil {
		return errors.Wrap(err, "token payload extra data")
	}

	p.IssuedAt = time.UnixMilli(issuedAtMs)
	return nil
}
