// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

// =============================================================================
// STREAM DECODER
// =============================================================================

// Decoder reads newline-delimited relay events from a raw byte stream.
//
// The decoder owns a buffered reader, so partial lines delivered by the
// transport are held until the delimiter arrives; callers see whole events
// no matter where the network splits the bytes. Blank lines and lines that
// do not parse as a recognized event are skipped silently - the relay uses
// them as keep-alive padding.
//
// A Decoder is single-pass: once Next returns io.EOF it stays drained.
type Decoder struct {
	reader  *bufio.Reader
	done    bool
	sawDone bool
}

// NewDecoder creates a decoder over r. The decoder does not close r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: bufio.NewReader(r),
	}
}

// Next returns the next event in arrival order.
//
// It returns io.EOF when the underlying stream ends or after a done event
// has been observed; bytes arriving after done are never read. Any other
// error is a transport fault surfaced mid-read.
func (d *Decoder) Next() (*Event, error) {
	if d.done {
		return nil, io.EOF
	}

	for {
		line, err := d.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// The final record may arrive without a trailing newline.
				if ev := parseEvent(bytes.TrimSpace(line)); ev != nil {
					d.done = true
					if ev.IsDone() {
						d.sawDone = true
					}
					return ev, nil
				}
				d.done = true
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		ev := parseEvent(line)
		if ev == nil {
			// Non-event padding, keep reading.
			continue
		}

		if ev.IsDone() {
			d.done = true
			d.sawDone = true
		}
		return ev, nil
	}
}

// Drained reports whether the decoder has reached its end.
func (d *Decoder) Drained() bool {
	return d.done
}

// SawDone reports whether the stream terminated with an explicit done event.
// A drained decoder that never saw done means the stream ended abruptly.
func (d *Decoder) SawDone() bool {
	return d.sawDone
}

// DecodeAll drains the decoder, invoking fn for each event. It stops at
// stream end, at a done event, on a read error, or when ctx is cancelled.
// Cancellation is checked between events, never mid-parse.
func (d *Decoder) DecodeAll(ctx context.Context, fn func(*Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := d.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if err := fn(ev); err != nil {
			return err
		}

		if ev.IsDone() {
			return nil
		}
	}
}
