package mqtt

import "fmt"

// Topic prefixes of the vendor broker.
//
// The broker uses two hierarchies: iot/atr for unsolicited device
// reports and iot/p2p for request/response exchanges between apps and
// devices.
const (
	// TopicPrefixReport is the base for unsolicited device reports.
	TopicPrefixReport = "iot/atr"

	// TopicPrefixP2P is the base for app-to-device exchanges.
	TopicPrefixP2P = "iot/p2p"
)

// Topics provides builders for the vendor broker topic patterns.
// Using these helpers keeps the wildcard positions consistent with the
// index-based parsing in the transport layer.
//
//	topics := mqtt.Topics{}
//	reports := topics.DeviceReports("E0001234", "yna5xi", "rGeX", "j")
//	// Returns: "iot/atr/+/E0001234/yna5xi/rGeX/j"
type Topics struct{}

// DeviceReports returns the subscription pattern for unsolicited reports
// of one device. Segment 2 is the report name, wildcarded here.
//
// Example: iot/atr/+/E0001234/yna5xi/rGeX/j
func (Topics) DeviceReports(did, class, resource, dataType string) string {
	return fmt.Sprintf("%s/+/%s/%s/%s/%s", TopicPrefixReport, did, class, resource, dataType)
}

// P2PRequests returns the subscription pattern for commands other
// controllers send to the device. Segment 10 carries the request id used
// to pair the eventual response.
//
// Example: iot/p2p/+/+/+/+/E0001234/yna5xi/rGeX/q/+/j
func (Topics) P2PRequests(did, class, resource, dataType string) string {
	return fmt.Sprintf("%s/+/+/+/+/%s/%s/%s/q/+/%s", TopicPrefixP2P, did, class, resource, dataType)
}

// P2PResponses returns the subscription pattern for the device's answers
// to p2p commands.
//
// Example: iot/p2p/+/E0001234/yna5xi/rGeX/+/+/+/p/+/j
func (Topics) P2PResponses(did, class, resource, dataType string) string {
	return fmt.Sprintf("%s/+/%s/%s/%s/+/+/+/p/+/%s", TopicPrefixP2P, did, class, resource, dataType)
}
