package format

import (
	"encoding/json"
	"fmt"

	"github.com/cloudspend/sentinel/pkg/model"
)

type apnsAlert struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body"`
}

type apnsAps struct {
	Alert apnsAlert `json:"alert"`
	Badge int       `json:"badge"`
	Sound string    `json:"sound"`
}

// EncodeAPNS serializes a push payload into the APNS wire document: the
// aps dictionary plus the custom data bag at the top level. Custom keys
// never shadow "aps".
func EncodeAPNS(p *model.PushPayload) (string, error) {
	doc := map[string]any{
		"aps": apnsAps{
			Alert: apnsAlert{Title: p.Title, Subtitle: p.Subtitle, Body: p.Body},
			Badge: p.Badge,
			Sound: p.Sound,
		},
	}
	for k, v := range p.Custom {
		if k == "aps" {
			continue
		}
		doc[k] = v
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode push payload: %w", err)
	}
	return string(raw), nil
}
