// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"context"
	"io"
	"math/rand"
	"strings"
	"testing"
)

// chunkedReader delivers its payload in fixed or random-sized pieces to
// simulate arbitrary network split points.
type chunkedReader struct {
	data   []byte
	pos    int
	sizes  []int
	sizeIx int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.sizes[r.sizeIx%len(r.sizes)]
	r.sizeIx++
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

const sampleStream = `{"type":"progress","progress":5,"step":"thinking"}
{"type":"text","content":"Hi"}

{"type":"text","content":" there"}
: keep-alive comment
{"type":"model_switch","content":"!","model":"relay-large-2","provider":"cloud"}
{"type":"metadata","metadata":{"provider":"openrouter"}}
{"type":"warning","message":"provider degraded"}
{"type":"done"}
`

func drain(t *testing.T, d *Decoder) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, *ev)
	}
}

func TestDecoder_EventOrder(t *testing.T) {
	d := NewDecoder(strings.NewReader(sampleStream))
	events := drain(t, d)

	wantKinds := []Kind{KindProgress, KindText, KindText, KindModelSwitch, KindMetadata, KindWarning, KindDone}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d", len(events), len(wantKinds))
	}
	for i, k := range wantKinds {
		if events[i].Kind != k {
			t.Errorf("event %d: got kind %q, want %q", i, events[i].Kind, k)
		}
	}
	if events[0].Progress != 5 || events[0].Step != "thinking" {
		t.Errorf("progress event mismatch: %+v", events[0])
	}
	if events[1].Content+events[2].Content != "Hi there" {
		t.Errorf("text deltas mismatch: %q %q", events[1].Content, events[2].Content)
	}
	if sw := events[3]; sw.Content != "!" || sw.Model != "relay-large-2" || sw.Provider != "cloud" {
		t.Errorf("model_switch event mismatch: %+v", sw)
	}
	if events[5].Message != "provider degraded" {
		t.Errorf("warning message = %q, want %q", events[5].Message, "provider degraded")
	}
	if !d.SawDone() {
		t.Error("SawDone = false after explicit done")
	}
}

// TestDecoder_SplitPointInvariance verifies the decoded sequence is
// identical no matter how the bytes are chunked.
func TestDecoder_SplitPointInvariance(t *testing.T) {
	reference := drain(t, NewDecoder(strings.NewReader(sampleStream)))

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		sizes := make([]int, 8)
		for i := range sizes {
			sizes[i] = 1 + rng.Intn(13)
		}

		d := NewDecoder(&chunkedReader{data: []byte(sampleStream), sizes: sizes})
		events := drain(t, d)

		if len(events) != len(reference) {
			t.Fatalf("trial %d sizes %v: got %d events, want %d", trial, sizes, len(events), len(reference))
		}
		for i := range events {
			if events[i].Kind != reference[i].Kind || events[i].Content != reference[i].Content ||
				events[i].Model != reference[i].Model || events[i].Message != reference[i].Message {
				t.Fatalf("trial %d: event %d diverged: %+v vs %+v", trial, i, events[i], reference[i])
			}
		}
	}
}

func TestDecoder_IgnoresBytesAfterDone(t *testing.T) {
	stream := "{\"type\":\"done\"}\n{\"type\":\"text\",\"content\":\"late\"}\n"
	d := NewDecoder(strings.NewReader(stream))

	ev, err := d.Next()
	if err != nil || !ev.IsDone() {
		t.Fatalf("first event: %v %v", ev, err)
	}
	if _, err := d.Next(); err != io.EOF {
		t.Fatalf("after done: err = %v, want io.EOF", err)
	}
}

func TestDecoder_SkipsMalformedLines(t *testing.T) {
	stream := "not json at all\n{\"type\":\"mystery\"}\n{\"type\":\"text\",\"content\":\"ok\"}\n"
	d := NewDecoder(strings.NewReader(stream))

	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Kind != KindText || ev.Content != "ok" {
		t.Fatalf("got %+v, want text/ok", ev)
	}
}

func TestDecoder_FinalLineWithoutNewline(t *testing.T) {
	stream := "{\"type\":\"text\",\"content\":\"partial\"}"
	d := NewDecoder(strings.NewReader(stream))

	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Content != "partial" {
		t.Fatalf("content = %q", ev.Content)
	}
	if _, err := d.Next(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if d.SawDone() {
		t.Error("SawDone = true for abrupt stream end")
	}
}

func TestDecodeAll_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDecoder(strings.NewReader(sampleStream))
	err := d.DecodeAll(ctx, func(*Event) error { return nil })
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDecodeAll_CollectsUntilDone(t *testing.T) {
	d := NewDecoder(strings.NewReader(sampleStream))

	var text strings.Builder
	err := d.DecodeAll(context.Background(), func(ev *Event) error {
		if ev.Kind == KindText {
			text.WriteString(ev.Content)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if text.String() != "Hi there" {
		t.Fatalf("text = %q", text.String())
	}
}
