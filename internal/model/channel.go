package model

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"sccpd/internal/callstate"
	"sccpd/internal/skinny"
)

// Party is one end of a call as shown on the display.
type Party struct {
	Name   string
	Number string
}

// MediaState tracks one direction of the phone's RTP stream.
type MediaState int

const (
	MediaClosed MediaState = iota
	MediaOpening
	MediaOpen
)

func (m MediaState) String() string {
	switch m {
	case MediaOpening:
		return "opening"
	case MediaOpen:
		return "open"
	}
	return "closed"
}

// Media is the RTP state of a channel.
type Media struct {
	Codec skinny.Codec
	// Phone is where the phone receives, from OpenReceiveChannelAck.
	Phone netip.AddrPort
	// Remote is where the phone sends, from StartMediaTransmission.
	Remote netip.AddrPort
	Rx     MediaState
	Tx     MediaState
	// Direct is the call reference the phone sends to directly, zero when
	// media goes through the PBX.
	Direct uint32
	Stats  *skinny.ConnectionStatisticsRes
}

// Channel is one call leg.
type Channel struct {
	CallRef      uint32
	PassThruID   uint32
	Type         skinny.CallType
	Device       *Device
	Line         *Line
	LineInstance uint32
	Created      time.Time

	mu         sync.Mutex
	state      callstate.State
	prev       callstate.State
	digits     []byte
	dialed     string
	calling    Party
	called     Party
	media      Media
	pbxID      string
	priority   uint32
	digitTimer uint64
	related    uint32
	answered   time.Time
	hangup     bool
}

func newChannel(ref, passThru uint32, d *Device, l *Line, instance uint32, typ skinny.CallType) *Channel {
	return &Channel{
		CallRef:      ref,
		PassThruID:   passThru,
		Type:         typ,
		Device:       d,
		Line:         l,
		LineInstance: instance,
		Created:      time.Now(),
		state:        callstate.Down,
		priority:     skinny.PriorityLow,
	}
}

func (c *Channel) String() string {
	return fmt.Sprintf("SCCP/%s-%08x", c.Line.Name, c.CallRef)
}

// State returns the current call state.
func (c *Channel) State() callstate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PreviousState returns the state before the last change.
func (c *Channel) PreviousState() callstate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prev
}

// SetState moves the channel to s and returns the state it left.
func (c *Channel) SetState(s callstate.State) callstate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	if prev != s {
		c.prev = prev
		c.state = s
	}
	if s == callstate.Connected && c.answered.IsZero() {
		c.answered = time.Now()
	}
	return prev
}

// Answered returns when the call first connected.
func (c *Channel) Answered() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answered
}

// AppendDigit adds a dialed key and returns the digits collected so far.
func (c *Channel) AppendDigit(b byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digits = append(c.digits, b)
	return string(c.digits)
}

// Backspace drops the last collected digit.
func (c *Channel) Backspace() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.digits); n > 0 {
		c.digits = c.digits[:n-1]
	}
	return string(c.digits)
}

// Digits returns the digits collected so far.
func (c *Channel) Digits() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.digits)
}

// SetDigits replaces the collected digits, as for enbloc or redial.
func (c *Channel) SetDigits(s string) {
	c.mu.Lock()
	c.digits = []byte(s)
	c.mu.Unlock()
}

// Dialed returns the number handed to the dialplan.
func (c *Channel) Dialed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialed
}

// SetDialed records the number handed to the dialplan.
func (c *Channel) SetDialed(s string) {
	c.mu.Lock()
	c.dialed = s
	c.mu.Unlock()
}

// Parties returns the calling and called party.
func (c *Channel) Parties() (calling, called Party) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calling, c.called
}

// SetParties replaces the calling and called party.
func (c *Channel) SetParties(calling, called Party) {
	c.mu.Lock()
	c.calling, c.called = calling, called
	c.mu.Unlock()
}

// CallInfo builds the display message for the channel.
func (c *Channel) CallInfo() skinny.CallInfo {
	calling, called := c.Parties()
	return skinny.CallInfo{
		CallingPartyName: calling.Name,
		CallingParty:     calling.Number,
		CalledPartyName:  called.Name,
		CalledParty:      called.Number,
		LineInstance:     c.LineInstance,
		CallReference:    c.CallRef,
		CallType:         c.Type,
		CallInstance:     c.CallRef,
	}
}

// Media returns a copy of the RTP state.
func (c *Channel) Media() Media {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media
}

// UpdateMedia changes the RTP state under the channel lock.
func (c *Channel) UpdateMedia(fn func(*Media)) Media {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.media)
	return c.media
}

// PBXID returns the id of the PBX side of the call.
func (c *Channel) PBXID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pbxID
}

// SetPBXID records the id of the PBX side of the call.
func (c *Channel) SetPBXID(id string) {
	c.mu.Lock()
	c.pbxID = id
	c.mu.Unlock()
}

// Priority returns the CallState priority.
func (c *Channel) Priority() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priority
}

// SetPriority changes the CallState priority.
func (c *Channel) SetPriority(p uint32) {
	c.mu.Lock()
	c.priority = p
	c.mu.Unlock()
}

// DigitTimer returns the pending digit timeout task, zero when none.
func (c *Channel) DigitTimer() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.digitTimer
}

// SwapDigitTimer stores a new digit timeout task and returns the old one.
func (c *Channel) SwapDigitTimer(id uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.digitTimer
	c.digitTimer = id
	return old
}

// Related returns the call reference of the leg this one transfers or
// consults, zero when none.
func (c *Channel) Related() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.related
}

// SetRelated links the leg to another one of the same device.
func (c *Channel) SetRelated(ref uint32) {
	c.mu.Lock()
	c.related = ref
	c.mu.Unlock()
}

// MarkHangup flags the channel as ending and reports whether it was the
// first to do so.
func (c *Channel) MarkHangup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hangup {
		return false
	}
	c.hangup = true
	return true
}
