package config

import (
	"fmt"
	"strings"
)

// ButtonType tags a button descriptor.
type ButtonType int

const (
	ButtonEmpty ButtonType = iota
	ButtonLine
	ButtonSpeedDial
	ButtonService
	ButtonFeature
)

var buttonTypeNames = []string{"empty", "line", "speeddial", "service", "feature"}

func (t ButtonType) String() string {
	if int(t) < len(buttonTypeNames) {
		return buttonTypeNames[t]
	}
	return fmt.Sprintf("ButtonType(%d)", int(t))
}

// Button is one physical button of a device.
type Button struct {
	Type ButtonType
	// Name is the line name for lines and the label otherwise.
	Name string
	// Option is the speeddial extension, the service URL, the feature id
	// or "default" on the line that takes outgoing calls.
	Option string
	// Args is the speeddial hint or the feature options.
	Args string

	SubscriptionID   string
	SubscriptionName string
	SubscriptionAux  string
}

// Mailbox is a voicemail box a line watches.
type Mailbox struct {
	Mailbox string
	Context string
}

func (m Mailbox) String() string {
	if m.Context == "" {
		return m.Mailbox
	}
	return m.Mailbox + "@" + m.Context
}

// Variable is a channel variable set on every call.
type Variable struct {
	Name  string
	Value string
}

// DNDMode is how do-not-disturb treats incoming calls.
type DNDMode int

const (
	DNDOff DNDMode = iota
	DNDReject
	DNDSilent
	DNDUser
)

func (m DNDMode) String() string {
	switch m {
	case DNDReject:
		return "reject"
	case DNDSilent:
		return "silent"
	case DNDUser:
		return "user"
	}
	return "off"
}

// ParseDND reads off, reject, silent or user. on and yes mean reject.
func ParseDND(s string) (DNDMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "no", "false":
		return DNDOff, nil
	case "reject", "on", "yes", "true":
		return DNDReject, nil
	case "silent":
		return DNDSilent, nil
	case "user":
		return DNDUser, nil
	}
	return DNDOff, fmt.Errorf("want off, reject, silent or user")
}

// PrivacyMode controls the private softkey of a device.
type PrivacyMode int

const (
	PrivacyOff PrivacyMode = iota
	PrivacyOn
	// PrivacyFull hides the caller id on every call.
	PrivacyFull
)

func (p PrivacyMode) String() string {
	switch p {
	case PrivacyOn:
		return "on"
	case PrivacyFull:
		return "full"
	}
	return "off"
}

// DTMFMode selects how digits reach the far end.
type DTMFMode int

const (
	DTMFInband DTMFMode = iota
	DTMFOutOfBand
)

func (m DTMFMode) String() string {
	if m == DTMFOutOfBand {
		return "outofband"
	}
	return "inband"
}
