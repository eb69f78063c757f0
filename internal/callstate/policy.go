package callstate

import (
	"fmt"
	"strings"
)

// EarlyRTP is the state from which the receive channel is opened before the
// call is answered.
type EarlyRTP int

const (
	EarlyRTPNone EarlyRTP = iota
	EarlyRTPOffHook
	EarlyRTPDial
	EarlyRTPRingOut
	EarlyRTPProgress
)

var earlyRTPNames = []string{"none", "offhook", "dial", "ringout", "progress"}

func (e EarlyRTP) String() string {
	if int(e) < len(earlyRTPNames) {
		return earlyRTPNames[e]
	}
	return fmt.Sprintf("EarlyRTP(%d)", int(e))
}

// ParseEarlyRTP reads none, offhook, dial, ringout or progress.
func ParseEarlyRTP(s string) (EarlyRTP, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range earlyRTPNames {
		if n == s {
			return EarlyRTP(i), nil
		}
	}
	return EarlyRTPNone, fmt.Errorf("invalid earlyrtp %q, want none, offhook, dial, ringout or progress", s)
}

// rank orders the outbound states on the way to an answer. Proceed is
// the number handed to the PBX, before any ringback or progress.
func rank(s State) int {
	switch s {
	case OffHook, GetDigits, SpeedDial:
		return 1
	case Dialing, DigitsFoll, Proceed:
		return 2
	case RingOut:
		return 3
	case Progress:
		return 4
	case Connected, CallConference:
		return 5
	}
	return 0
}

// Opens reports whether entering s opens the receive channel under policy
// e. Connected always does.
func (e EarlyRTP) Opens(s State) bool {
	r := rank(s)
	if r == 5 {
		return true
	}
	if e == EarlyRTPNone || r == 0 {
		return false
	}
	return r >= int(e)
}

// BlindTransferIndication is what the transferred party hears while the
// transfer target rings.
type BlindTransferIndication int

const (
	BlindTransferRing BlindTransferIndication = iota
	BlindTransferMOH
)

func (b BlindTransferIndication) String() string {
	if b == BlindTransferMOH {
		return "moh"
	}
	return "ring"
}

// ParseBlindTransferIndication reads moh or ring.
func ParseBlindTransferIndication(s string) (BlindTransferIndication, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ring":
		return BlindTransferRing, nil
	case "moh":
		return BlindTransferMOH, nil
	}
	return BlindTransferRing, fmt.Errorf("invalid blindtransferindication %q, want moh or ring", s)
}

// AnswerOrder picks which of several ringing calls the Answer key takes.
type AnswerOrder int

const (
	AnswerOldestFirst AnswerOrder = iota
	AnswerLatestFirst
)

func (o AnswerOrder) String() string {
	if o == AnswerLatestFirst {
		return "latestfirst"
	}
	return "oldestfirst"
}

// ParseAnswerOrder reads oldestfirst or latestfirst.
func ParseAnswerOrder(s string) (AnswerOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oldestfirst":
		return AnswerOldestFirst, nil
	case "latestfirst", "lastestfirst":
		return AnswerLatestFirst, nil
	}
	return AnswerOldestFirst, fmt.Errorf("invalid callanswerorder %q, want oldestfirst or latestfirst", s)
}

// Pick returns the index of the call to answer among n ringing calls sorted
// oldest first, or -1 when there is none.
func (o AnswerOrder) Pick(n int) int {
	switch {
	case n <= 0:
		return -1
	case o == AnswerLatestFirst:
		return n - 1
	}
	return 0
}
