// Package pbx is the surface the driver needs from the PBX it serves:
// channels, the dialplan, the media endpoints and voicemail counters.
package pbx

import (
	"context"
	"errors"
	"net/netip"

	"sccpd/internal/netutil"
	"sccpd/internal/skinny"
)

// ErrPbxUnavailable reports a transient PBX side failure. The call is
// ended with CauseCongestion.
var ErrPbxUnavailable = errors.New("pbx: unavailable")

// ErrNoChannel is returned for an unknown channel id.
var ErrNoChannel = errors.New("pbx: no such channel")

// Cause is a hangup cause in Q.850 numbering.
type Cause int

const (
	CauseNormal      Cause = 16
	CauseBusy        Cause = 17
	CauseNoAnswer    Cause = 19
	CauseUnallocated Cause = 1
	CauseCongestion  Cause = 34
	CauseRejected    Cause = 21
)

func (c Cause) String() string {
	switch c {
	case CauseNormal:
		return "normal"
	case CauseBusy:
		return "busy"
	case CauseNoAnswer:
		return "no answer"
	case CauseUnallocated:
		return "unallocated"
	case CauseCongestion:
		return "congestion"
	case CauseRejected:
		return "rejected"
	}
	return "unknown"
}

// Indication is a call progress event of the far end, or a request the
// phone side makes of it.
type Indication int

const (
	IndicateProceeding Indication = iota
	IndicateProgress
	IndicateRinging
	IndicateAnswer
	IndicateBusy
	IndicateCongestion
	IndicateHold
	IndicateUnhold
)

var indicationNames = []string{"proceeding", "progress", "ringing", "answer", "busy", "congestion", "hold", "unhold"}

func (i Indication) String() string {
	if int(i) < len(indicationNames) {
		return indicationNames[i]
	}
	return "unknown"
}

// Match is the result of a dialplan lookup.
type Match struct {
	// Exists is set when the digits name an extension.
	Exists bool
	// MoreDigits is set when a longer number could still match.
	MoreDigits bool
}

// ChannelRequest describes the PBX side of a new call leg.
type ChannelRequest struct {
	Line         string
	Context      string
	CallerName   string
	CallerNumber string
	Language     string
	MusicClass   string
	AccountCode  string
	Codecs       []skinny.Codec
	Variables    map[string]string
}

// Incoming is a call the PBX offers to a line.
type Incoming struct {
	ID           string
	Line         string
	CallerName   string
	CallerNumber string
	CalledNumber string
}

// PhoneMedia is where a phone receives RTP for a channel.
type PhoneMedia struct {
	Addr  netip.AddrPort
	Codec skinny.Codec
	// QoS marks the packets the PBX sends to the phone.
	QoS netutil.QoS
}

// Handler receives the events the PBX produces for channels of the
// driver. Calls arrive from PBX goroutines and must not block for long.
type Handler interface {
	// Offer rings a line. A non-nil error rejects the call with that
	// cause.
	Offer(in Incoming) error
	// Indicate reports far end progress on channel id.
	Indicate(id string, ind Indication)
	// Hangup reports that the PBX ended channel id.
	Hangup(id string, cause Cause)
	// MessageWaiting reports new voicemail counters of a mailbox.
	MessageWaiting(mailbox string, newMsgs, oldMsgs int)
}

// PBX is what the driver calls, with the lock of one device held but
// never a registry lock. Methods must not call back into the Handler
// synchronously; events are delivered from the PBX's own goroutine.
type PBX interface {
	// NewChannel creates the PBX side of a call leg and returns its id.
	NewChannel(ctx context.Context, req ChannelRequest) (string, error)
	// Dial runs the dialplan for exten on an outbound channel.
	Dial(ctx context.Context, id, exten string) error
	// Answer accepts an offered channel.
	Answer(ctx context.Context, id string) error
	// Hangup ends a channel.
	Hangup(ctx context.Context, id string, cause Cause) error
	// Indicate passes a phone side event such as hold to the far end.
	Indicate(ctx context.Context, id string, ind Indication) error
	// SendDigit queues an out of band DTMF digit.
	SendDigit(ctx context.Context, id string, digit byte) error
	// Bridge joins the far ends of two channels and drops both legs, as
	// for a transfer.
	Bridge(ctx context.Context, a, b string) error
	// MatchExtension looks exten up in the dialplan.
	MatchExtension(ctx context.Context, dialContext, exten string) (Match, error)
	// MediaAddr returns where the PBX receives RTP for a channel.
	MediaAddr(ctx context.Context, id string) (netip.AddrPort, error)
	// SetPhoneMedia tells the PBX where the phone receives RTP, which
	// codec it sends and how to mark the stream.
	SetPhoneMedia(ctx context.Context, id string, m PhoneMedia) error
	// Mailbox returns the voicemail counters of a mailbox.
	Mailbox(ctx context.Context, mailbox string) (newMsgs, oldMsgs int, err error)
	// Subscribe installs the event handler.
	Subscribe(h Handler)
}

// LocalPeer is implemented by a PBX that can tell which channel id is
// bridged to another. The driver uses it to send RTP between two of its
// own phones directly.
type LocalPeer interface {
	// Peer returns the channel bridged to id once both are answered.
	Peer(id string) (string, bool)
}
