package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"sccpd/internal/callstate"
	"sccpd/internal/netutil"
	"sccpd/internal/skinny"
)

// Value builds a single valued setter from a parser. The parser never
// sees an empty string; an empty or missing value resets the field.
func Value[T any, V comparable](field func(*T) *V, parse func(string) (V, error)) Setter[T] {
	return func(t *T, values []string) (Result, error) {
		var v V
		if s := last(values); s != "" {
			var err error
			if v, err = parse(s); err != nil {
				return Invalid, err
			}
		}
		p := field(t)
		if *p == v {
			return NoChange, nil
		}
		*p = v
		return Changed, nil
	}
}

// Bool is a Value setter for yes/no style options.
func Bool[T any](field func(*T) *bool) Setter[T] { return Value(field, ParseBool) }

// Int is a Value setter for integers in [lo, hi].
func Int[T any](field func(*T) *int, lo, hi int) Setter[T] { return Value(field, intRange(lo, hi)) }

// String is a Value setter that stores the text as given.
func String[T any](field func(*T) *string) Setter[T] {
	return Value(field, func(s string) (string, error) { return s, nil })
}

// Char is a Value setter for a single character.
func Char[T any](field func(*T) *byte) Setter[T] { return Value(field, parseChar) }

// List builds a multi valued setter. Each value may hold several items;
// items that fail to parse are skipped with a warning, and the option is
// invalid only when nothing parsed.
func List[T any, V comparable](field func(*T) *[]V, parse func(string) ([]V, error)) Setter[T] {
	return listWith(field, parse, nil)
}

func listWith[T any, V comparable](field func(*T) *[]V, parse func(string) ([]V, error), finish func([]V) []V) Setter[T] {
	return func(t *T, values []string) (Result, error) {
		var out []V
		var errs []error
		given := 0
		for _, s := range values {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			given++
			items, err := parse(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("%q: %w", s, err))
				continue
			}
			out = append(out, items...)
		}
		err := errors.Join(errs...)
		if given > 0 && len(errs) == given {
			return Invalid, err
		}
		if finish != nil {
			out = finish(out)
		}
		p := field(t)
		if slices.Equal(*p, out) {
			return NoChange, err
		}
		*p = out
		return Changed, err
	}
}

// one adapts a single item parser to List.
func one[V any](parse func(string) (V, error)) func(string) ([]V, error) {
	return func(s string) ([]V, error) {
		v, err := parse(s)
		if err != nil {
			return nil, err
		}
		return []V{v}, nil
	}
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[len(values)-1])
}

// ParseBool accepts the usual spellings of true and false.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "y", "t", "1", "on":
		return true, nil
	case "no", "false", "n", "f", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

func intRange(lo, hi int) func(string) (int, error) {
	return func(s string) (int, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		if int(n) < lo || int(n) > hi {
			return 0, fmt.Errorf("out of range %d..%d", lo, hi)
		}
		return int(n), nil
	}
}

func parseChar(s string) (byte, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("want a single character")
	}
	return s[0], nil
}

// ParseSmallInt reads a value in 0..255.
func ParseSmallInt(s string) (int, error) { return intRange(0, 255)(s) }

// ParsePort reads a port in 1..65535.
func ParsePort(s string) (int, error) { return intRange(1, 65535)(s) }

var tosNames = map[string]int{
	"lowdelay":    0x10,
	"throughput":  0x08,
	"reliability": 0x04,
	"mincost":     0x02,
	"none":        0,
	"ef":          46 << 2,
}

// ParseTOS reads a type of service byte: a DSCP class name (CS0..CS7,
// AF11..AF43, EF), a classic TOS name or a number.
func ParseTOS(s string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if n, ok := tosNames[v]; ok {
		return n, nil
	}
	switch {
	case len(v) == 3 && strings.HasPrefix(v, "cs") && v[2] >= '0' && v[2] <= '7':
		return int(v[2]-'0') << 5, nil
	case len(v) == 4 && strings.HasPrefix(v, "af") && v[2] >= '1' && v[2] <= '4' && v[3] >= '1' && v[3] <= '3':
		class, drop := int(v[2]-'0'), int(v[3]-'0')
		return (class<<3 | drop<<1) << 2, nil
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("want CS?, AF??, EF, lowdelay, throughput, reliability, mincost, none or a number")
	}
	return int(n) & 0xFF, nil
}

// ParseCOS reads an 802.1p priority.
func ParseCOS(s string) (int, error) { return intRange(0, 7)(s) }

// parseGroup reads "1,3-5,7" into a bitmask. Groups outside 0..63 are
// dropped with a warning.
func parseGroup(s string) (uint64, []error, error) {
	var mask uint64
	var warns []error
	for _, piece := range strings.Split(s, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(piece, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, nil, fmt.Errorf("bad group %q", piece)
		}
		finish := start
		if isRange {
			if finish, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return 0, nil, fmt.Errorf("bad group range %q", piece)
			}
		}
		if start > finish {
			start, finish = finish, start
		}
		for g := start; g <= finish; g++ {
			if g < 0 || g > 63 {
				warns = append(warns, fmt.Errorf("group %d out of range 0..63", g))
				continue
			}
			mask |= 1 << uint(g)
		}
	}
	return mask, warns, nil
}

// Group is the setter for call and pickup groups.
func Group[T any](field func(*T) *uint64) Setter[T] {
	return func(t *T, values []string) (Result, error) {
		var mask uint64
		var warns []error
		if s := last(values); s != "" {
			var err error
			if mask, warns, err = parseGroup(s); err != nil {
				return Invalid, err
			}
		}
		warn := errors.Join(warns...)
		p := field(t)
		if *p == mask {
			return NoChange, warn
		}
		*p = mask
		return Changed, warn
	}
}

// lookupHost resolves names given where an address is expected. Tests
// replace it.
var lookupHost = func(host string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, err
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("no address for %s", host)
	}
	return addrs[0].Unmap(), nil
}

// ParseIP reads an address or resolves a host name.
func ParseIP(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if a, err := netip.ParseAddr(s); err == nil {
		return a.Unmap(), nil
	}
	a, err := lookupHost(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve %s: %w", s, err)
	}
	return a, nil
}

// parseCodecs validates a comma separated codec list. "all" is kept as is.
func parseCodecs(s string) ([]string, error) {
	var out []string
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name != "all" && len(skinny.CodecsByName(name)) == 0 {
			return nil, fmt.Errorf("unknown codec %s", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// Codecs resolves allow and disallow lists to codec preferences. A
// disallow of all starts from nothing, the allowed codecs follow in order
// and named disallows are removed last.
func Codecs(allow, disallow []string) []skinny.Codec {
	var out []skinny.Codec
	add := func(c skinny.Codec) {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	for _, name := range allow {
		if name == "all" {
			for _, n := range []string{"ulaw", "alaw", "g722", "g729", "g723", "g728", "gsm", "g726", "slin16", "g722.1", "isac"} {
				for _, c := range skinny.CodecsByName(n) {
					add(c)
				}
			}
			continue
		}
		for _, c := range skinny.CodecsByName(name) {
			add(c)
		}
	}
	for _, name := range disallow {
		if name == "all" {
			continue
		}
		for _, c := range skinny.CodecsByName(name) {
			out = slices.DeleteFunc(out, func(x skinny.Codec) bool { return x == c })
		}
	}
	return out
}

func parseMailboxes(s string) ([]Mailbox, error) {
	var out []Mailbox
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		box, ctx, _ := strings.Cut(part, "@")
		if box == "" {
			return nil, fmt.Errorf("empty mailbox")
		}
		out = append(out, Mailbox{Mailbox: box, Context: ctx})
	}
	return out, nil
}

func dedupMailboxes(in []Mailbox) []Mailbox {
	var out []Mailbox
	for _, m := range in {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

func parseVariable(s string) (Variable, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Variable{}, fmt.Errorf("want name=value")
	}
	return Variable{Name: name, Value: strings.TrimSpace(value)}, nil
}

// prepend reverses the file order so the last definition comes first.
func prepend(in []Variable) []Variable {
	slices.Reverse(in)
	return in
}

// ParseButton reads TYPE,NAME[,OPTION[,ARGS]].
func ParseButton(s string) (Button, error) {
	parts := strings.SplitN(s, ",", 4)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	arg := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}
	var b Button
	switch strings.ToLower(parts[0]) {
	case "empty":
		b.Type = ButtonEmpty
		return b, nil
	case "line":
		b.Type = ButtonLine
		name, sub, _ := strings.Cut(arg(1), "@")
		b.Name = strings.TrimSpace(name)
		if sub != "" {
			fields := strings.SplitN(sub, ":", 3)
			b.SubscriptionID = fields[0]
			if len(fields) > 1 {
				b.SubscriptionName = fields[1]
			}
			if len(fields) > 2 {
				b.SubscriptionAux = fields[2]
			}
		}
		b.Option = arg(2)
		if b.Name == "" {
			return b, fmt.Errorf("line button without a line name")
		}
	case "speeddial":
		b = Button{Type: ButtonSpeedDial, Name: arg(1), Option: arg(2), Args: arg(3)}
		if b.Name == "" || b.Option == "" {
			return b, fmt.Errorf("speeddial needs a label and an extension")
		}
	case "service":
		b = Button{Type: ButtonService, Name: arg(1), Option: arg(2)}
		if b.Name == "" || b.Option == "" {
			return b, fmt.Errorf("service needs a label and a url")
		}
	case "feature":
		b = Button{Type: ButtonFeature, Name: arg(1), Option: arg(2), Args: arg(3)}
		if b.Name == "" || b.Option == "" {
			return b, fmt.Errorf("feature needs a label and a feature id")
		}
	default:
		return b, fmt.Errorf("unknown button type %q", parts[0])
	}
	return b, nil
}

// addonTypes maps addon names to their device types.
var addonTypes = map[string]uint32{
	"7914": skinny.DeviceType7914,
	"7915": skinny.DeviceType7915,
	"7916": skinny.DeviceType7916,
}

// ParseAddon reads 7914, 7915 or 7916.
func ParseAddon(s string) (uint32, error) {
	if t, ok := addonTypes[strings.TrimSpace(s)]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("want 7914, 7915 or 7916")
}

// ParsePrivacy reads full, on or off.
func ParsePrivacy(s string) (PrivacyMode, error) {
	if strings.EqualFold(strings.TrimSpace(s), "full") {
		return PrivacyFull, nil
	}
	on, err := ParseBool(s)
	if err != nil {
		return PrivacyOff, fmt.Errorf("want full, on or off")
	}
	if on {
		return PrivacyOn, nil
	}
	return PrivacyOff, nil
}

// ParseDTMF reads inband or outofband.
func ParseDTMF(s string) (DTMFMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inband":
		return DTMFInband, nil
	case "outofband", "rfc2833":
		return DTMFOutOfBand, nil
	}
	return DTMFInband, fmt.Errorf("want inband or outofband")
}

// ParseLampMode reads off, on, wink, flash or blink.
func ParseLampMode(s string) (skinny.LampMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return skinny.LampOff, nil
	case "on":
		return skinny.LampOn, nil
	case "wink":
		return skinny.LampWink, nil
	case "flash":
		return skinny.LampFlash, nil
	case "blink":
		return skinny.LampBlink, nil
	}
	return 0, fmt.Errorf("want off, on, wink, flash or blink")
}

// ParseAMAFlags reads default, omit, billing or documentation.
func ParseAMAFlags(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default":
		return 0, nil
	case "omit":
		return 1, nil
	case "billing":
		return 2, nil
	case "documentation":
		return 3, nil
	}
	return 0, fmt.Errorf("want default, omit, billing or documentation")
}

// ParseFallback reads true, false, odd or even.
func ParseFallback(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "true", "false", "odd", "even":
		return v, nil
	case "yes", "on":
		return "true", nil
	case "no", "off":
		return "false", nil
	}
	return "", fmt.Errorf("want true, false, odd or even")
}

func parseSecondaryDigits(s string) (string, error) {
	if len(s) > 9 {
		return "", fmt.Errorf("at most 9 digits")
	}
	return s, nil
}

func parseTone(s string) (skinny.Tone, error) {
	n, err := ParseSmallInt(s)
	return skinny.Tone(n), err
}

// tosSetter and cosSetter each store one half of a QoS pair.
func tosSetter[T any](field func(*T) *netutil.QoS) Setter[T] {
	return Value(func(t *T) *int { return &field(t).TOS }, ParseTOS)
}

func cosSetter[T any](field func(*T) *netutil.QoS) Setter[T] {
	return Value(func(t *T) *int { return &field(t).COS }, ParseCOS)
}

func earlyRTP[T any](field func(*T) *callstate.EarlyRTP) Setter[T] {
	return Value(field, callstate.ParseEarlyRTP)
}

func parseDateFormat(s string) (string, error) {
	if len(s) > skinny.DateTemplateSize {
		return "", fmt.Errorf("at most %d characters", skinny.DateTemplateSize)
	}
	return s, nil
}

// ParseTableName accepts a plain SQL identifier.
func ParseTableName(s string) (string, error) {
	if s == "" || len(s) > 63 {
		return "", fmt.Errorf("bad table name")
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return "", fmt.Errorf("bad table name %q", s)
		}
	}
	return s, nil
}
