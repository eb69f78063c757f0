package server

import (
	"sort"
	"time"

	"sccpd/internal/model"
	"sccpd/internal/netutil"
	"sccpd/internal/skinny"
)

// DeviceInfo is a snapshot of one configured device.
type DeviceInfo struct {
	ID           string      `json:"id"`
	Description  string      `json:"description,omitempty"`
	Registered   bool        `json:"registered"`
	Hotline      bool        `json:"hotline,omitempty"`
	Address      string      `json:"address,omitempty"`
	Type         uint32      `json:"type,omitempty"`
	Protocol     uint8       `json:"protocol,omitempty"`
	State        string      `json:"state,omitempty"`
	Since        time.Time   `json:"since,omitempty"`
	Calls        int         `json:"calls"`
	DND          string      `json:"dnd"`
	Lines        []string    `json:"lines"`
	PendingReset bool        `json:"pending_reset,omitempty"`
	DTMFMode     string      `json:"dtmfmode"`
	AudioQoS     netutil.QoS `json:"audio_qos"`
	VideoQoS     netutil.QoS `json:"video_qos"`
}

// LineInfo is a snapshot of one line.
type LineInfo struct {
	Name        string   `json:"name"`
	Label       string   `json:"label,omitempty"`
	CIDName     string   `json:"cid_name,omitempty"`
	CIDNum      string   `json:"cid_num,omitempty"`
	Realtime    bool     `json:"realtime,omitempty"`
	Devices     []string `json:"devices"`
	NewMessages int      `json:"new_messages"`
	OldMessages int      `json:"old_messages"`
}

// ChannelInfo is a snapshot of one call leg.
type ChannelInfo struct {
	CallRef   uint32    `json:"callref"`
	Device    string    `json:"device"`
	Line      string    `json:"line"`
	Instance  uint32    `json:"instance"`
	Direction string    `json:"direction"`
	State     string    `json:"state"`
	Calling   string    `json:"calling,omitempty"`
	Called    string    `json:"called,omitempty"`
	PBX       string    `json:"pbx_channel,omitempty"`
	Codec     string    `json:"codec,omitempty"`
	Created   time.Time `json:"created"`
}

// Devices lists every configured device, sorted by name.
func (s *Server) Devices() []DeviceInfo {
	var out []DeviceInfo
	s.reg.EachDevice(func(d *model.Device) {
		cfg := d.Config()
		info := DeviceInfo{
			ID:           d.ID,
			Description:  cfg.Description,
			Registered:   d.Registered(),
			Hotline:      d.Hotline(),
			Calls:        d.CallCount(),
			DND:          d.Features().DND.String(),
			Lines:        cfg.Lines(),
			PendingReset: d.PendingUpdate(),
			DTMFMode:     cfg.DTMFMode.String(),
			AudioQoS:     cfg.AudioQoS,
			VideoQoS:     cfg.VideoQoS,
		}
		if info.Registered {
			reg := d.Registration()
			info.Type = reg.Type
			if reg.Addr.IsValid() {
				info.Address = reg.Addr.String()
			}
			info.Since = d.RegisteredAt()
			if p := s.phone(d.ID); p != nil {
				info.Protocol = p.sess.Version()
				info.State = p.sess.State()
			}
		}
		out = append(out, info)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lines lists every line, sorted by name.
func (s *Server) Lines() []LineInfo {
	var out []LineInfo
	s.reg.EachLine(func(l *model.Line) {
		lc := l.Config()
		info := LineInfo{
			Name:     l.Name,
			Label:    lc.Label,
			CIDName:  lc.CIDName,
			CIDNum:   lc.CIDNum,
			Realtime: l.Realtime(),
			Devices:  []string{},
		}
		for _, a := range l.Appearances() {
			info.Devices = append(info.Devices, a.Device)
		}
		info.NewMessages, info.OldMessages = l.Messages()
		out = append(out, info)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Channels lists the live call legs, oldest first.
func (s *Server) Channels() []ChannelInfo {
	list := s.reg.Channels()
	out := make([]ChannelInfo, 0, len(list))
	for _, c := range list {
		calling, called := c.Parties()
		info := ChannelInfo{
			CallRef:   c.CallRef,
			Device:    c.Device.ID,
			Line:      c.Line.Name,
			Instance:  c.LineInstance,
			Direction: direction(c.Type),
			State:     c.State().String(),
			Calling:   calling.Number,
			Called:    called.Number,
			PBX:       c.PBXID(),
			Created:   c.Created,
		}
		if m := c.Media(); m.Rx != model.MediaClosed {
			info.Codec = m.Codec.Name()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallRef < out[j].CallRef })
	return out
}

func direction(t skinny.CallType) string {
	switch t {
	case skinny.CallTypeInbound:
		return "inbound"
	case skinny.CallTypeOutbound:
		return "outbound"
	}
	return "forward"
}


// LineContexts maps every line to the dialplan context its calls are
// placed in.
func (s *Server) LineContexts() map[string]string {
	def := s.Global().Context
	out := make(map[string]string)
	s.reg.EachLine(func(l *model.Line) {
		ctx := l.Config().Context
		if ctx == "" {
			ctx = def
		}
		out[l.Name] = ctx
	})
	return out
}
