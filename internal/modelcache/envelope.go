package modelcache

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope wraps a model payload with the metadata needed to validate it on load.
type Envelope struct {
	Kind      string
	Version   int
	CreatedAt time.Time
	Payload   map[string]any
}

// EncodeEnvelope serializes env as a protobuf Struct. Payload values must be
// representable by structpb: nil, bool, numbers, strings, []byte, []any and map[string]any.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"kind":       env.Kind,
		"version":    env.Version,
		"created_at": env.CreatedAt.UTC().Format(time.RFC3339Nano),
		"payload":    env.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build envelope: %w", err)
	}
	blob, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return blob, nil
}

// DecodeEnvelope parses a blob written by EncodeEnvelope.
func DecodeEnvelope(blob []byte) (Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(blob, &s); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	fields := s.AsMap()

	kind, _ := fields["kind"].(string)
	version, _ := fields["version"].(float64)
	createdRaw, _ := fields["created_at"].(string)
	payload, _ := fields["payload"].(map[string]any)
	if kind == "" || payload == nil {
		return Envelope{}, fmt.Errorf("envelope is missing kind or payload")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope timestamp: %w", err)
	}

	return Envelope{
		Kind:      kind,
		Version:   int(version),
		CreatedAt: createdAt,
		Payload:   payload,
	}, nil
}

// Floats converts a slice for storage in a payload.
func Floats(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// PayloadFloats reads a []float64 stored with Floats.
func PayloadFloats(payload map[string]any, key string) ([]float64, error) {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil, fmt.Errorf("payload field %q is not a list", key)
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("payload field %q[%d] is not a number", key, i)
		}
		out[i] = f
	}
	return out, nil
}

// PayloadFloat reads a single number.
func PayloadFloat(payload map[string]any, key string) (float64, error) {
	f, ok := payload[key].(float64)
	if !ok {
		return 0, fmt.Errorf("payload field %q is not a number", key)
	}
	return f, nil
}

// PayloadTime reads a timestamp stored as an RFC 3339 string.
func PayloadTime(payload map[string]any, key string) (time.Time, error) {
	raw, ok := payload[key].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("payload field %q is not a string", key)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("payload field %q: %w", key, err)
	}
	return t, nil
}

// PayloadBytes reads a []byte value, which structpb stores base64 encoded.
func PayloadBytes(payload map[string]any, key string) ([]byte, error) {
	raw, ok := payload[key].(string)
	if !ok {
		return nil, fmt.Errorf("payload field %q is not a string", key)
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("payload field %q: %w", key, err)
	}
	return b, nil
}
