package protocol

import "strings"

// Frames ride the guest's stderr stream as \x00STEPVIS:{json}\x00 so protocol
// traffic and ordinary diagnostic output share one channel without escaping.
const (
	FramePrefix = "\x00STEPVIS:"
	frameSuffix = "\x00"
)

// NextFrame scans content for the earliest complete frame. It returns the
// passthrough text preceding the frame, the frame payload, and the
// unconsumed rest of the stream. When found is false the payload is empty
// and rest holds whatever must be retained for the next scan: an
// unterminated frame, or a stream tail that could still grow into a frame
// marker. Callers loop until found is false, then buffer rest.
func NextFrame(content string) (passthrough, payload, rest string, found bool) {
	idx := strings.Index(content, FramePrefix)
	if idx == -1 {
		keep := partialMarkerLen(content)
		return content[:len(content)-keep], "", content[len(content)-keep:], false
	}

	after := content[idx+len(FramePrefix):]
	end := strings.Index(after, frameSuffix)
	if end == -1 {
		return content[:idx], "", content[idx:], false
	}
	return content[:idx], after[:end], after[end+len(frameSuffix):], true
}

// partialMarkerLen returns the length of the longest content suffix that is
// a proper prefix of the frame marker. That tail must not be flushed as
// passthrough: the rest of the marker may arrive in the next write.
func partialMarkerLen(content string) int {
	limit := len(FramePrefix) - 1
	if len(content) < limit {
		limit = len(content)
	}
	for n := limit; n > 0; n-- {
		if strings.HasSuffix(content, FramePrefix[:n]) {
			return n
		}
	}
	return 0
}
