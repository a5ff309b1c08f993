package cookie

import (
	"strconv"
	"strings"
)

// An assignment cookie value is a "."-separated list: the domain hash first,
// then one field per experiment. Each field is
//
//	<experimentID>$<tag>:<variationSpec>
//
// where only the leading integer of the variation spec carries meaning. The
// decoder is deliberately lenient: fields that do not match the shape are
// ignored on read and carried through verbatim on write, so one malformed
// entry never destroys the rest of the cookie.

// assignmentField is one decoded per-experiment entry.
type assignmentField struct {
	experimentID string
	tag          string
	spec         string
}

// parseAssignmentField splits one dot-field into its parts, reporting whether
// the field matches the grammar at all. The tag may be empty; it is opaque.
func parseAssignmentField(field string) (assignmentField, bool) {
	dollar := strings.IndexByte(field, '$')
	if dollar <= 0 {
		return assignmentField{}, false
	}
	rest := field[dollar+1:]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return assignmentField{}, false
	}
	return assignmentField{
		experimentID: field[:dollar],
		tag:          rest[:colon],
		spec:         rest[colon+1:],
	}, true
}

// leadingVariation extracts the integer at the front of a variation spec.
// An optional minus sign is accepted so sentinel values survive a round trip;
// anything after the digits ("2-1", "2x") is ignored.
func leadingVariation(spec string) (int, bool) {
	if spec == "" {
		return 0, false
	}
	end := 0
	if spec[0] == '-' {
		end = 1
	}
	start := end
	for end < len(spec) && spec[end] >= '0' && spec[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(spec[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DecodeAssignment finds the stored variation for experimentID inside a raw
// assignment cookie value. The second return is false when the value holds no
// decodable entry for that experiment, including when the value as a whole is
// too short to be a cookie at all (fewer than two dot-fields).
func DecodeAssignment(value, experimentID string) (int, bool) {
	fields := strings.Split(value, ".")
	if len(fields) < 2 {
		return 0, false
	}
	for _, field := range fields[1:] {
		parsed, ok := parseAssignmentField(field)
		if !ok || parsed.experimentID != experimentID {
			continue
		}
		return leadingVariation(parsed.spec)
	}
	return 0, false
}

// UpdateAssignment returns a new assignment cookie value with experimentID
// bound to variation. An existing entry for the experiment keeps its tag and
// has only its variation spec replaced; otherwise a fresh entry with tag "0"
// is appended. The leading domain hash of a previous value with at least two
// dot-fields is reused verbatim; any shorter previous value is treated as
// absent and a fresh hash of domain is computed. Unrelated fields, decodable
// or not, pass through untouched.
func UpdateAssignment(prev, experimentID string, variation int, domain string) string {
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
			if parsed, ok := parseAssignmentField(field); ok && parsed.experimentID == experimentID {
				out = append(out, experimentID+"$"+parsed.tag+":"+strconv.Itoa(variation))
				replaced = true
				continue
			}
		}
		out = append(out, field)
	}
	if !replaced {
		out = append(out, experimentID+"$0:"+strconv.Itoa(variation))
	}
	return strings.Join(out, ".")
}
