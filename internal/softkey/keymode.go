package softkey

import (
	"fmt"
	"strings"
)

// KeyMode indexes the softkey set a phone shows for a call state. The value
// is the set index carried by SelectSoftKeys.
type KeyMode uint8

const (
	KeyModeOnHook KeyMode = iota
	KeyModeConnected
	KeyModeOnHold
	KeyModeRingIn
	KeyModeOffHook
	KeyModeConnTrans
	KeyModeDigitsFoll
	KeyModeConnConf
	KeyModeRingOut
	KeyModeOffHookFeat
	KeyModeInUseHint
	KeyModeOnHookStealable

	NumKeyModes = int(KeyModeOnHookStealable) + 1
)

// MaxKeysPerMode is the number of softkey slots a mode row carries. The
// last slot stays empty.
const MaxKeysPerMode = 16

var keyModeNames = [NumKeyModes]string{
	"onhook", "connected", "onhold", "ringin", "offhook", "conntrans",
	"digitsfoll", "connconf", "ringout", "offhookfeat", "onhint", "onstealable",
}

func (m KeyMode) String() string {
	if int(m) < NumKeyModes {
		return keyModeNames[m]
	}
	return fmt.Sprintf("KeyMode(%d)", uint8(m))
}

// KeyModeByName resolves a softkeyset section key such as "onhold".
func KeyModeByName(name string) (KeyMode, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range keyModeNames {
		if n == name {
			return KeyMode(i), true
		}
	}
	return 0, false
}
