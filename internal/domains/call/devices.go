package call

import "strings"

// Device is one audio input device as reported by the facts provider.
type Device struct {
	ID            string `json:"id"`
	UID           string `json:"uid"`
	Name          string `json:"name"`
	TransportType string `json:"transportType"`
	IsRunning     bool   `json:"isRunning"`
}

// DeviceLister enumerates the machine's audio input devices. The OS-level
// implementation lives outside this engine; pkg/facts ships a file-backed
// one for wiring and tests.
type DeviceLister interface {
	ListInputDevices() ([]Device, error)
}

// Transport types that never correspond to a physical microphone.
var excludedTransports = map[string]bool{
	"virtual":        true,
	"aggregate":      true,
	"auto-aggregate": true,
}

// Name fragments of devices that report capture activity without anyone
// talking into them: webcams, speakerphones and loopback/output devices.
var falsePositiveNames = []string{
	"webcam",
	"camera",
	"facetime",
	"display audio",
	"speakerphone",
	"loopback",
	"soundflower",
	"blackhole",
}

// eligible reports whether a device counts toward the mic-active predicate.
func eligible(d Device, ignoredUIDs map[string]bool) bool {
	if ignoredUIDs[d.UID] {
		return false
	}
	if excludedTransports[strings.ToLower(d.TransportType)] {
		return false
	}
	name := strings.ToLower(d.Name)
	for _, frag := range falsePositiveNames {
		if strings.Contains(name, frag) {
			return false
		}
	}
	return true
}

// anyActive is the raw mic predicate: true iff any eligible device reports
// active capture.
func anyActive(devices []Device, ignoredUIDs map[string]bool) bool {
	for _, d := range devices {
		if d.IsRunning && eligible(d, ignoredUIDs) {
			return true
		}
	}
	return false
}
