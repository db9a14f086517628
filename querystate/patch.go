package querystate

import (
	"net/url"
	"strings"
)

// Update sets or deletes one query key.
type Update struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Delete bool   `json:"delete,omitempty"`
}

// Patch is an ordered set of key updates.
type Patch []Update

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool { return len(p) == 0 }

// ApplyValues applies the patch to q in place.
func (p Patch) ApplyValues(q url.Values) {
	for _, u := range p {
		if u.Delete {
			q.Del(u.Key)
			continue
		}
		q.Set(u.Key, u.Value)
	}
}

// Apply applies the patch to a raw query string. Unrelated keys keep their
// values; a leading "?" is preserved. Pairs that do not parse are carried
// through verbatim after the encoded pairs unless the patch sets their key.
func (p Patch) Apply(raw string) string {
	prefix := ""
	if strings.HasPrefix(raw, "?") {
		prefix, raw = "?", raw[1:]
	}
	q := url.Values{}
	var opaque []string
	for seg := range strings.SplitSeq(raw, "&") {
		if seg == "" {
			continue
		}
		pair, err := url.ParseQuery(seg)
		if err != nil {
			if !p.touches(rawKey(seg)) {
				opaque = append(opaque, seg)
			}
			continue
		}
		for k, vs := range pair {
			q[k] = append(q[k], vs...)
		}
	}
	p.ApplyValues(q)

	out := q.Encode()
	if len(opaque) > 0 {
		if out != "" {
			out += "&"
		}
		out += strings.Join(opaque, "&")
	}
	if out == "" {
		return ""
	}
	return prefix + out
}

func (p Patch) touches(key string) bool {
	for _, u := range p {
		if u.Key == key {
			return true
		}
	}
	return false
}

// rawKey returns the decoded key of a query pair, or the key as written when
// it does not decode.
func rawKey(seg string) string {
	k, _, _ := strings.Cut(seg, "=")
	if dk, err := url.QueryUnescape(k); err == nil {
		return dk
	}
	return k
}
