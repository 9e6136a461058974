package protocol

import (
	"errors"
	"testing"
)

// FuzzDecode fuzzes the inbound event decoder with arbitrary frames
func FuzzDecode(f *testing.F) {
	f.Add([]byte(`{"event":"authenticated","data":{"success":true,"userId":"u1"}}`))
	f.Add([]byte(`{"event":"user_status","data":{"userId":"u1","status":"online"}}`))
	f.Add([]byte(`{"event":"notification_count","data":{"count":3}}`))
	f.Add([]byte(`{"event":"new_message","data":{"message":{"_id":"m1","text":"hi"}}}`))
	f.Add([]byte(`{"event":"user_typing","data":{"conversationId":"c1","userId":"u2"}}`))
	f.Add([]byte(`{"event":"disconnect"}`))
	f.Add([]byte(`{"event":"","data":null}`))
	f.Add([]byte(`not json`))

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must never panic; errors must be one of the package's sentinels
		evt, err := Decode(data)
		if err != nil {
			if evt != nil {
				t.Fatalf("Decode returned both an event and an error: %v", err)
			}
			if !errors.Is(err, ErrMalformedEnvelope) && !errors.Is(err, ErrInvalidPayload) && !errors.Is(err, ErrUnknownEvent) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			return
		}
		if evt.EventName() == "" {
			t.Fatal("decoded event has no name")
		}
	})
}

// FuzzEncodeMessage checks that any outbound message text survives encoding
func FuzzEncodeMessage(f *testing.F) {
	f.Add("u2", "hello")
	f.Add("", "")
	f.Add("u\x00", "\xff\xfe")

	f.Fuzz(func(t *testing.T, recipient, text string) {
		raw, err := Encode(SendMessage{RecipientID: recipient, Text: text})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if len(raw) == 0 {
			t.Fatal("Encode produced no bytes")
		}
	})
}
