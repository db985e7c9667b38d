package stage

import (
	"encoding/json"
	"fmt"

	"reelgate/internal/services"
)

type envelope struct {
	Stage Name            `json:"stage"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps payload in the tagged JSON envelope.
func Encode(payload Payload) ([]byte, error) {
	if payload == nil {
		return nil, services.Wrap(services.ErrValidation, "stage", "encode", "payload is nil", nil)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", payload.Stage(), err)
	}
	return json.Marshal(envelope{Stage: payload.Stage(), Data: data})
}

// Decode parses a tagged JSON envelope back into its concrete payload.
func Decode(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, services.Wrap(services.ErrValidation, "stage", "decode", "malformed payload envelope", err)
	}
	return DecodeData(env.Stage, env.Data)
}

// DecodeData parses the bare payload object for the named stage.
func DecodeData(name Name, data []byte) (Payload, error) {
	var (
		payload Payload
		err     error
	)
	switch name {
	case Research:
		var p ResearchPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case Script:
		var p ScriptPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case Metadata:
		var p MetadataPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case Video:
		var p VideoPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case Upload:
		var p UploadPayload
		err = json.Unmarshal(data, &p)
		payload = p
	default:
		return nil, services.Wrap(services.ErrValidation, "stage", "decode", fmt.Sprintf("unknown stage %q", name), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "stage", "decode", fmt.Sprintf("malformed %s payload", name), err)
	}
	return payload, nil
}
