// Package protocol hides the layout differences between SCCP protocol
// revisions behind one set of encoders. A session picks its Adaptor once,
// after the phone has advertised the highest version it speaks.
package protocol

import (
	"sccpd/internal/skinny"
)

// Adaptor builds the version specific message for each logical operation.
// Messages whose layout only depends on the version number (media channels,
// forward status, dialed number) are left to the codec; the adaptor decides
// which message id to use and fills the fields that version understands.
type Adaptor interface {
	Version() uint8
	RegisterAck(keepAlive uint32, dateFormat string) skinny.Message
	CallInfo(ci skinny.CallInfo) skinny.Message
	DisplayPrompt(lineInstance, callRef, timeout uint32, text string) skinny.Message
	DisplayNotify(timeout uint32, text string) skinny.Message
	DisplayPriNotify(priority, timeout uint32, text string) skinny.Message
	CallForward(fs skinny.ForwardStat) skinny.Message
	UserToDeviceData(d skinny.UserToDeviceData) skinny.Message
	DialedNumber(lineInstance, callRef uint32, number string) skinny.Message
}

// Negotiate clamps the version advertised by a phone into the supported
// range.
func Negotiate(advertised uint8) uint8 {
	v := min(advertised, skinny.MaxProtocolVersion)
	return max(v, skinny.MinProtocolVersion)
}

// For returns the adaptor for ver, clamped into the supported range.
func For(ver uint8) Adaptor {
	ver = Negotiate(ver)
	switch {
	case ver >= 17:
		return v17{v16{base{ver}}}
	case ver >= 16:
		return v16{base{ver}}
	case ver >= 11:
		return v11{base{ver}}
	default:
		return v3{base{ver}}
	}
}

// base implements the layouts every version shares.
type base struct {
	ver uint8
}

func (b base) Version() uint8 { return b.ver }

func (b base) CallForward(fs skinny.ForwardStat) skinny.Message {
	return &fs
}

func (b base) DialedNumber(lineInstance, callRef uint32, number string) skinny.Message {
	return &skinny.DialedNumber{CalledParty: number, LineInstance: lineInstance, CallReference: callRef}
}

func (b base) UserToDeviceData(d skinny.UserToDeviceData) skinny.Message {
	return &d
}

func (b base) CallInfo(ci skinny.CallInfo) skinny.Message {
	return &ci
}

func (b base) DisplayPrompt(lineInstance, callRef, timeout uint32, text string) skinny.Message {
	return &skinny.DisplayPromptStatus{Timeout: timeout, Text: text, LineInstance: lineInstance, CallReference: callRef}
}

func (b base) DisplayNotify(timeout uint32, text string) skinny.Message {
	return &skinny.DisplayNotify{Timeout: timeout, Text: text}
}

func (b base) DisplayPriNotify(priority, timeout uint32, text string) skinny.Message {
	return &skinny.DisplayPriNotify{Timeout: timeout, Priority: priority, Text: text}
}

// v3 covers 3..10: the original fixed layouts.
type v3 struct{ base }

func (a v3) RegisterAck(keepAlive uint32, dateFormat string) skinny.Message {
	return &skinny.RegisterAck{
		KeepAlive:          keepAlive,
		DateTemplate:       dateFormat,
		SecondaryKeepAlive: keepAlive,
		ProtocolVer:        a.ver,
	}
}

// v11 covers 11..15. These loads check the feature bytes of RegisterAck.
type v11 struct{ base }

func (a v11) RegisterAck(keepAlive uint32, dateFormat string) skinny.Message {
	return newerRegisterAck(a.ver, keepAlive, dateFormat)
}

func newerRegisterAck(ver uint8, keepAlive uint32, dateFormat string) skinny.Message {
	return &skinny.RegisterAck{
		KeepAlive:          keepAlive,
		DateTemplate:       dateFormat,
		SecondaryKeepAlive: keepAlive,
		ProtocolVer:        ver,
		Unknown1:           0x20,
		Unknown2:           0xF1,
		Unknown3:           0xFF,
	}
}

// v16 switches display and call information to the dynamic, variable
// length messages.
type v16 struct{ base }

func (a v16) RegisterAck(keepAlive uint32, dateFormat string) skinny.Message {
	return newerRegisterAck(a.ver, keepAlive, dateFormat)
}

func (a v16) CallInfo(ci skinny.CallInfo) skinny.Message {
	return &skinny.CallInfoDynamic{CallInfo: ci}
}

func (a v16) DisplayPrompt(lineInstance, callRef, timeout uint32, text string) skinny.Message {
	return &skinny.DisplayDynamicPromptStatus{Timeout: timeout, LineInstance: lineInstance, CallReference: callRef, Text: text}
}

func (a v16) DisplayNotify(timeout uint32, text string) skinny.Message {
	return &skinny.DisplayDynamicNotify{Timeout: timeout, Text: text}
}

func (a v16) DisplayPriNotify(priority, timeout uint32, text string) skinny.Message {
	return &skinny.DisplayDynamicPriNotify{Timeout: timeout, Priority: priority, Text: text}
}

// v17 and later carry IPv6 capable addresses (handled by the codec) and
// the extended UserToDeviceData.
type v17 struct{ v16 }

func (a v17) UserToDeviceData(d skinny.UserToDeviceData) skinny.Message {
	return &skinny.UserToDeviceDataVersion1{
		AppID:         d.AppID,
		LineInstance:  d.LineInstance,
		CallReference: d.CallReference,
		TransactionID: d.TransactionID,
		Data:          d.Data,
	}
}
