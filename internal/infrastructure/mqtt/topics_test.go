package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			"device reports",
			topics.DeviceReports("E0001234", "yna5xi", "rGeX", "j"),
			"iot/atr/+/E0001234/yna5xi/rGeX/j",
		},
		{
			"p2p requests",
			topics.P2PRequests("E0001234", "yna5xi", "rGeX", "j"),
			"iot/p2p/+/+/+/+/E0001234/yna5xi/rGeX/q/+/j",
		},
		{
			"p2p responses",
			topics.P2PResponses("E0001234", "yna5xi", "rGeX", "j"),
			"iot/p2p/+/E0001234/yna5xi/rGeX/+/+/+/p/+/j",
		},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
