package nats

import "fmt"

// Subject hierarchy for DutyWatch events.
//
//	dw.events.pairing.{key}  -- change events for one pairing key
//	dw.events.all            -- every change event
const (
	SubjectPrefix = "dw"

	// KV bucket names
	BucketPlans   = "dw-plans"
	BucketAcks    = "dw-acks"
	BucketDevices = "dw-devices"
	BucketPolicy  = "dw-policy"
)

// EventPairingSubject returns the subject for one pairing key's events.
// Example: dw.events.pairing.3f2a9c0d11be44aa
func EventPairingSubject(storageKey string) string {
	return fmt.Sprintf("%s.events.pairing.%s", SubjectPrefix, storageKey)
}

// EventAllSubject returns the subject carrying every change event.
func EventAllSubject() string {
	return fmt.Sprintf("%s.events.all", SubjectPrefix)
}

// EventsWildcardSubject returns the wildcard over all event subjects.
func EventsWildcardSubject() string {
	return fmt.Sprintf("%s.events.>", SubjectPrefix)
}
