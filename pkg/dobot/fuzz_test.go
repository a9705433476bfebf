// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomFrame(rng *rand.Rand) *Frame {
	payload := make([]byte, rng.Intn(MaxPayloadSize+1))
	rng.Read(payload)
	return NewFrame(CommandID(rng.Intn(256)), rng.Intn(2) == 1, rng.Intn(2) == 1, payload)
}

// randomNoise returns bytes that can never start a frame
func randomNoise(rng *rand.Rand, n int) []byte {
	noise := make([]byte, n)
	for i := range noise {
		b := byte(rng.Intn(256))
		if b == SyncByte {
			b = 0x00
		}
		noise[i] = b
	}
	return noise
}

func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		data := make([]byte, rng.Intn(512))
		rng.Read(data)

		d := NewDecoder()
		for _, b := range data {
			frame, _ := d.DecodeByte(b)
			if frame == nil {
				continue
			}
			// Anything accepted must re-encode to a self-consistent frame
			wire, err := EncodeFrame(frame)
			if err != nil {
				t.Fatalf("Round %d: accepted frame does not re-encode: %v", round, err)
			}
			if !VerifyChecksum(wire[SyncSize+1:]) {
				t.Fatalf("Round %d: accepted frame has bad checksum", round)
			}
		}
	}
}

func TestFuzzDecoder_RandomFrames(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		want := randomFrame(rng)
		wire, err := EncodeFrame(want)
		if err != nil {
			t.Fatalf("Round %d: encode failed: %v", round, err)
		}

		got, n, err := Decode(wire)
		if err != nil {
			t.Fatalf("Round %d: decode failed: %v", round, err)
		}
		if n != len(wire) {
			t.Errorf("Round %d: consumed %d, want %d", round, n, len(wire))
		}
		if got.ID != want.ID || got.Queued != want.Queued || got.Write != want.Write {
			t.Errorf("Round %d: header mismatch", round)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("Round %d: payload mismatch", round)
		}
	}
}

func TestFuzzDecoder_FramesWithNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds() / 10
	if rounds == 0 {
		rounds = 1
	}

	for round := 0; round < rounds; round++ {
		count := 1 + rng.Intn(8)
		frames := make([]*Frame, count)
		noiseTotal := 0

		var stream []byte
		for i := range frames {
			noise := randomNoise(rng, rng.Intn(6))
			noiseTotal += len(noise)
			stream = append(stream, noise...)

			frames[i] = randomFrame(rng)
			stream = append(stream, MustEncodeFrame(frames[i])...)
		}

		d := NewDecoder()
		d.Feed(stream)

		var got []*Frame
		corrupt := 0
		for d.Buffered() > 0 {
			f, err := d.Next()
			if err != nil {
				corrupt++
				continue
			}
			if f == nil {
				break
			}
			got = append(got, f)
		}

		if len(got) != count {
			t.Fatalf("Round %d: decoded %d frames, want %d", round, len(got), count)
		}
		for i := range frames {
			if got[i].ID != frames[i].ID || !bytes.Equal(got[i].Payload, frames[i].Payload) {
				t.Errorf("Round %d: frame %d mismatch", round, i)
			}
		}
		if corrupt != noiseTotal {
			t.Errorf("Round %d: dropped %d bytes, want %d", round, corrupt, noiseTotal)
		}
	}
}

func TestFuzzDecoder_CorruptedFrames(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		wire := MustEncodeFrame(randomFrame(rng))

		pos := rng.Intn(len(wire))
		wire[pos] ^= 1 << uint(rng.Intn(8))

		// A flipped length bit can shrink the frame onto a prefix that
		// happens to sum correctly; the full frame must never pass
		if _, n, err := Decode(wire); err == nil && n == len(wire) {
			t.Fatalf("Round %d: single-bit flip at byte %d accepted", round, pos)
		}
	}
}

func TestFuzzFormatter_RandomFrames(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		f := randomFrame(rng)
		// Bias towards commands with structured payloads
		if rng.Intn(2) == 0 {
			ids := []CommandID{CmdGetPose, CmdGetAlarms, CmdPTPCmd, CmdJOGCmd, CmdWAITCmd, CmdDeviceVersion, CmdDeviceSN}
			f.ID = ids[rng.Intn(len(ids))]
		}

		if out := FormatFrame(f); out == "" {
			t.Fatalf("Round %d: empty output", round)
		}
	}
}
