package signal_test

import (
	"testing"

	"github.com/edgard/signalbot/internal/signal"
)

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		raw      string
		expected *signal.Inbound
		wantErr  bool
	}{
		{
			name: "data message in a group",
			raw: `{"envelope":{"timestamp":1718000000000,"sourceNumber":"+15550001111",` +
				`"sourceName":"alice","dataMessage":{"message":"hello",` +
				`"groupInfo":{"groupId":"abc123"}}}}`,
			expected: &signal.Inbound{
				Timestamp:    1718000000000,
				SourceName:   "alice",
				SourceNumber: "+15550001111",
				Message:      "hello",
				GroupID:      "abc123",
			},
		},
		{
			name: "sent message from a linked device",
			raw: `{"envelope":{"timestamp":1718000001000,"sourceName":"bob",` +
				`"syncMessage":{"sentMessage":{"message":"hi there",` +
				`"groupInfo":{"groupId":"abc123"}}}}}`,
			expected: &signal.Inbound{
				Timestamp:  1718000001000,
				SourceName: "bob",
				Message:    "hi there",
				GroupID:    "abc123",
			},
		},
		{
			name: "data message without group info",
			raw:  `{"envelope":{"timestamp":1,"sourceName":"carol","dataMessage":{"message":"dm"}}}`,
			expected: &signal.Inbound{
				Timestamp:  1,
				SourceName: "carol",
				Message:    "dm",
			},
		},
		{
			name: "data message takes priority over sync message",
			raw: `{"envelope":{"sourceName":"dave",` +
				`"dataMessage":{"message":"direct"},` +
				`"syncMessage":{"sentMessage":{"message":"synced"}}}}`,
			expected: &signal.Inbound{SourceName: "dave", Message: "direct"},
		},
		{
			name:     "receipt envelope without a body",
			raw:      `{"envelope":{"timestamp":2,"sourceName":"eve"}}`,
			expected: nil,
		},
		{
			name:     "sync message without sent message",
			raw:      `{"envelope":{"sourceName":"eve","syncMessage":{}}}`,
			expected: nil,
		},
		{
			name:     "empty object",
			raw:      `{}`,
			expected: nil,
		},
		{
			name:    "malformed json",
			raw:     `{"envelope":`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := signal.ParseEnvelope([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseEnvelope(%q) expected error, got nil", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEnvelope(%q) unexpected error: %v", tc.raw, err)
			}

			if tc.expected == nil {
				if got != nil {
					t.Fatalf("ParseEnvelope(%q) = %+v, want nil", tc.raw, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseEnvelope(%q) = nil, want %+v", tc.raw, tc.expected)
			}
			if *got != *tc.expected {
				t.Errorf("ParseEnvelope(%q) = %+v, want %+v", tc.raw, got, tc.expected)
			}
		})
	}
}

func TestGroupRecipient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		groupID  string
		expected string
	}{
		{
			name:     "simple id",
			groupID:  "Test",
			expected: "group.VGVzdA==",
		},
		{
			name:     "empty id",
			groupID:  "",
			expected: "group.",
		},
		{
			name:     "binary-ish id",
			groupID:  "a/b+c=",
			expected: "group.YS9iK2M9",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := signal.GroupRecipient(tc.groupID); got != tc.expected {
				t.Errorf("GroupRecipient(%q) = %q, want %q", tc.groupID, got, tc.expected)
			}
		})
	}
}
