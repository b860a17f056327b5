package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFrame(t *testing.T) {
	tests := []struct {
		name            string
		content         string
		wantPassthrough string
		wantPayload     string
		wantRest        string
		wantFound       bool
	}{
		{
			name:            "no marker",
			content:         "hello world",
			wantPassthrough: "hello world",
		},
		{
			name:            "empty content",
			content:         "",
			wantPassthrough: "",
		},
		{
			name:            "frame between output",
			content:         "before\x00STEPVIS:{\"kind\":\"console-log\"}\x00after",
			wantPassthrough: "before",
			wantPayload:     `{"kind":"console-log"}`,
			wantRest:        "after",
			wantFound:       true,
		},
		{
			name:        "frame at start",
			content:     "\x00STEPVIS:{}\x00",
			wantPayload: "{}",
			wantFound:   true,
		},
		{
			name:        "empty payload",
			content:     "\x00STEPVIS:\x00",
			wantPayload: "",
			wantFound:   true,
		},
		{
			name:            "unterminated frame retained",
			content:         "log line\x00STEPVIS:{\"kind\":\"cap",
			wantPassthrough: "log line",
			wantRest:        "\x00STEPVIS:{\"kind\":\"cap",
		},
		{
			name:            "partial marker tail retained",
			content:         "output\x00STEPV",
			wantPassthrough: "output",
			wantRest:        "\x00STEPV",
		},
		{
			name:            "lone nul byte retained",
			content:         "x\x00",
			wantPassthrough: "x",
			wantRest:        "\x00",
		},
		{
			name:        "two frames returns first",
			content:     "\x00STEPVIS:{\"a\":1}\x00\x00STEPVIS:{\"b\":2}\x00",
			wantPayload: `{"a":1}`,
			wantRest:    "\x00STEPVIS:{\"b\":2}\x00",
			wantFound:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passthrough, payload, rest, found := NextFrame(tt.content)
			assert.Equal(t, tt.wantPassthrough, passthrough)
			assert.Equal(t, tt.wantPayload, payload)
			assert.Equal(t, tt.wantRest, rest)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestNextFrameDrainLoop(t *testing.T) {
	content := "a\x00STEPVIS:1\x00b\x00STEPVIS:2\x00c"

	var payloads []string
	var output string
	for {
		passthrough, payload, rest, found := NextFrame(content)
		output += passthrough
		if !found {
			content = rest
			break
		}
		payloads = append(payloads, payload)
		content = rest
	}

	require.Equal(t, []string{"1", "2"}, payloads)
	assert.Equal(t, "abc", output)
	assert.Empty(t, content)
}

func TestNextFrameSplitAcrossWrites(t *testing.T) {
	full := "noise\x00STEPVIS:{\"kind\":\"console-log\"}\x00tail"

	// Feed one byte at a time, carrying rest forward like the stream
	// splitter does. The frame must survive arbitrary write boundaries.
	var buf, output string
	var payloads []string
	for i := 0; i < len(full); i++ {
		buf += string(full[i])
		for {
			passthrough, payload, rest, found := NextFrame(buf)
			output += passthrough
			buf = rest
			if !found {
				break
			}
			payloads = append(payloads, payload)
		}
	}
	output += buf

	require.Equal(t, []string{`{"kind":"console-log"}`}, payloads)
	assert.Equal(t, "noisetail", output)
}
