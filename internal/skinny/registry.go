package skinny

import "fmt"

// Message is a decoded frame payload. Layouts are selected by the protocol
// version the session negotiated.
type Message interface {
	ID() MessageID
	encode(w *writer, ver uint8)
	decode(r *reader, ver uint8)
}

// variant is a decoder valid for the inclusive version range [lo, hi].
type variant struct {
	lo, hi uint8
	new    func() Message
}

var variants = map[MessageID][]variant{}

func register(lo, hi uint8, fn func() Message) {
	id := fn().ID()
	variants[id] = append(variants[id], variant{lo: lo, hi: hi, new: fn})
}

func always(fn func() Message) { register(0, 255, fn) }

func init() {
	always(func() Message { return &KeepAlive{} })
	always(func() Message { return &Register{} })
	always(func() Message { return &IpPort{} })
	always(func() Message { return &KeypadButton{} })
	always(func() Message { return &EnblocCall{} })
	always(func() Message { return &StimulusMsg{} })
	always(func() Message { return &OffHook{} })
	always(func() Message { return &OnHook{} })
	always(func() Message { return &HookFlash{} })
	always(func() Message { return &ForwardStatReq{} })
	always(func() Message { return &SpeedDialStatReq{} })
	always(func() Message { return &LineStatReq{} })
	always(func() Message { return &ConfigStatReq{} })
	always(func() Message { return &TimeDateReq{} })
	always(func() Message { return &ButtonTemplateReq{} })
	always(func() Message { return &VersionReq{} })
	always(func() Message { return &CapabilitiesRes{} })
	always(func() Message { return &Alarm{} })
	always(func() Message { return &OpenReceiveChannelAck{} })
	always(func() Message { return &OpenMultiMediaReceiveChannelAck{} })
	always(func() Message { return &ConnectionStatisticsRes{} })
	always(func() Message { return &OffHookWithCgpn{} })
	always(func() Message { return &SoftKeySetReq{} })
	always(func() Message { return &SoftKeyEvent{} })
	always(func() Message { return &Unregister{} })
	always(func() Message { return &SoftKeyTemplateReq{} })
	always(func() Message { return &RegisterTokenReq{} })
	always(func() Message { return &HeadsetStatus{} })
	always(func() Message { return &RegisterAvailableLines{} })
	always(func() Message { return &UpdateCapabilities{} })
	always(func() Message { return &ServiceURLStatReq{} })
	always(func() Message { return &FeatureStatReq{} })
	always(func() Message { return &DialedPhoneBook{} })
	always(func() Message { return &AccessoryStatus{} })
	always(func() Message { return &StartMediaTransmissionAck{} })
	always(func() Message { return &XMLAlarm{} })
	always(func() Message { return &SPCPRegisterTokenRequest{} })

	always(func() Message { return &RegisterAck{} })
	always(func() Message { return &StartTone{} })
	always(func() Message { return &StopTone{} })
	always(func() Message { return &SetRinger{} })
	always(func() Message { return &SetLamp{} })
	always(func() Message { return &SetSpeakerMode{} })
	always(func() Message { return &StartMediaTransmission{} })
	always(func() Message { return &StopMediaTransmission{} })
	always(func() Message { return &CallInfo{} })
	always(func() Message { return &ForwardStat{} })
	always(func() Message { return &SpeedDialStat{} })
	always(func() Message { return &LineStat{} })
	always(func() Message { return &ConfigStat{} })
	always(func() Message { return &DefineTimeDate{} })
	always(func() Message { return &ButtonTemplate{} })
	always(func() Message { return &Version{} })
	always(func() Message { return &DisplayText{} })
	always(func() Message { return &ClearDisplay{} })
	always(func() Message { return &CapabilitiesReq{} })
	always(func() Message { return &RegisterReject{} })
	always(func() Message { return &Reset{} })
	always(func() Message { return &KeepAliveAck{} })
	always(func() Message { return &OpenReceiveChannel{} })
	always(func() Message { return &CloseReceiveChannel{} })
	always(func() Message { return &ConnectionStatisticsReq{} })
	always(func() Message { return &SoftKeyTemplateRes{} })
	always(func() Message { return &SoftKeySetRes{} })
	always(func() Message { return &SelectSoftKeys{} })
	always(func() Message { return &CallStateMsg{} })
	always(func() Message { return &DisplayPromptStatus{} })
	always(func() Message { return &ClearPromptStatus{} })
	always(func() Message { return &DisplayNotify{} })
	always(func() Message { return &ClearNotify{} })
	always(func() Message { return &ActivateCallPlane{} })
	always(func() Message { return &DeactivateCallPlane{} })
	always(func() Message { return &UnregisterAck{} })
	always(func() Message { return &BackSpaceReq{} })
	always(func() Message { return &RegisterTokenAck{} })
	always(func() Message { return &RegisterTokenReject{} })
	always(func() Message { return &DialedNumber{} })
	always(func() Message { return &UserToDeviceData{} })
	always(func() Message { return &FeatureStat{} })
	always(func() Message { return &DisplayPriNotify{} })
	always(func() Message { return &ServiceURLStat{} })
	always(func() Message { return &OpenMultiMediaChannel{} })
	always(func() Message { return &StartMultiMediaTransmission{} })
	always(func() Message { return &MiscellaneousCommand{} })
	always(func() Message { return &FlowControlCommand{} })
	always(func() Message { return &SPCPRegisterTokenAck{} })
	always(func() Message { return &SPCPRegisterTokenReject{} })

	// Dynamic display messages only exist on newer firmware.
	register(16, 255, func() Message { return &DisplayDynamicNotify{} })
	register(16, 255, func() Message { return &DisplayDynamicPriNotify{} })
	register(16, 255, func() Message { return &DisplayDynamicPromptStatus{} })
	register(16, 255, func() Message { return &CallInfoDynamic{} })
	register(17, 255, func() Message { return &UserToDeviceDataVersion1{} })
}

func newMessage(id MessageID, ver uint8) (Message, error) {
	for _, v := range variants[id] {
		if ver >= v.lo && ver <= v.hi {
			return v.new(), nil
		}
	}
	return nil, fmt.Errorf("%s at v%d: %w", id, ver, ErrUnknownVariant)
}

// Supported reports whether id has a layout at ver.
func Supported(id MessageID, ver uint8) bool {
	_, err := newMessage(id, ver)
	return err == nil
}
