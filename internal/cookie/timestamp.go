package cookie

import (
	"strconv"
	"strings"
)

// TTLSeconds is the lifetime written into every timestamp cookie field and
// used for the cookie expiry attribute. The client script writes the same
// literal (93 days).
const TTLSeconds = 8035200

// A timestamp cookie value mirrors the assignment cookie layout with fields
//
//	<experimentID>$<tag>:<timestamp>:<ttl>[:<trailing>]
//
// recording when each experiment's assignment was made. Trailing material
// after the ttl is opaque and preserved verbatim.

// timestampField is one decoded per-experiment entry.
type timestampField struct {
	experimentID string
	tag          string
	timestamp    string
	ttl          string
	trailing     string
	hasTrailing  bool
}

func parseTimestampField(field string) (timestampField, bool) {
	dollar := strings.IndexByte(field, '$')
	if dollar <= 0 {
		return timestampField{}, false
	}
	rest := field[dollar+1:]

	c1 := strings.IndexByte(rest, ':')
	if c1 < 0 {
		return timestampField{}, false
	}
	c2 := strings.IndexByte(rest[c1+1:], ':')
	if c2 < 0 {
		return timestampField{}, false
	}
	c2 += c1 + 1

	out := timestampField{
		experimentID: field[:dollar],
		tag:          rest[:c1],
		timestamp:    rest[c1+1 : c2],
		ttl:          rest[c2+1:],
	}
	if c3 := strings.IndexByte(out.ttl, ':'); c3 >= 0 {
		out.trailing = out.ttl[c3+1:]
		out.ttl = out.ttl[:c3]
		out.hasTrailing = true
	}
	return out, true
}

func (f timestampField) encode() string {
	s := f.experimentID + "$" + f.tag + ":" + f.timestamp + ":" + f.ttl
	if f.hasTrailing {
		s += ":" + f.trailing
	}
	return s
}

// DecodeTimestamp finds the recorded assignment time and ttl for experimentID
// inside a raw timestamp cookie value. The third return is false when the
// value holds no entry with a numeric timestamp for that experiment.
func DecodeTimestamp(value, experimentID string) (timestamp, ttl int64, ok bool) {
	fields := strings.Split(value, ".")
	if len(fields) < 2 {
		return 0, 0, false
	}
	for _, field := range fields[1:] {
		parsed, matched := parseTimestampField(field)
		if !matched || parsed.experimentID != experimentID {
			continue
		}
		ts, err := strconv.ParseInt(parsed.timestamp, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		// A bad ttl does not invalidate the timestamp.
		lifetime, _ := strconv.ParseInt(parsed.ttl, 10, 64)
		return ts, lifetime, true
	}
	return 0, 0, false
}

// UpdateTimestamp returns a new timestamp cookie value recording that
// experimentID was assigned at now (seconds since epoch). An existing entry
// keeps its tag, ttl and trailing material and has only its timestamp
// replaced; otherwise a fresh entry with tag "0" and the standard ttl is
// appended. Domain hash handling matches UpdateAssignment.
func UpdateTimestamp(prev, experimentID string, now int64, domain string) string {
	head := strconv.FormatUint(uint64(DomainHash(domain)), 10)
	var rest []string
	if fields := strings.Split(prev, "."); len(fields) >= 2 {
		head = fields[0]
		rest = fields[1:]
	}

	out := make([]string, 0, len(rest)+2)
	out = append(out, head)
	replaced := false
	for _, field := range rest {
		if !replaced {
			if parsed, ok := parseTimestampField(field); ok && parsed.experimentID == experimentID {
				parsed.timestamp = strconv.FormatInt(now, 10)
				out = append(out, parsed.encode())
				replaced = true
				continue
			}
		}
		out = append(out, field)
	}
	if !replaced {
		out = append(out, experimentID+"$0:"+strconv.FormatInt(now, 10)+":"+strconv.Itoa(TTLSeconds))
	}
	return strings.Join(out, ".")
}
