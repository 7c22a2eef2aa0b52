package registry

import (
	"encoding/json"
	"testing"

	"github.com/skillroads/skillroads-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventEntitlementGranted, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"item_id":"roadmap-go"}`)
	output, err := reg.Decode(enums.EventEntitlementGranted, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["item_id"] != "roadmap-go" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventEntitlementGranted, 2, input); err == nil {
		t.Fatalf("expected missing decoder error")
	}
}
