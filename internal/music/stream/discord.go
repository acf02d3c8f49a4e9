package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// pump reads PCM frames from r, scales them by volume() and pushes Opus
// packets to out until r ends or ctx is cancelled. It blocks while g is
// closed.
func pump(ctx context.Context, r io.Reader, enc encoder, out chan<- []byte, g *gate, volume func() float64) error {
	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		if err := g.wait(ctx); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, pcmBuf); err != nil {
			return err
		}

		decodeFrame(pcmBuf, intBuf)
		scale(intBuf, volume())

		opus, err := enc.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case out <- opus:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func decodeFrame(pcm []byte, out []int16) {
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
}

// scale applies v in place, clipping to int16.
func scale(samples []int16, v float64) {
	if v == 1 {
		return
	}
	for i, s := range samples {
		f := float64(s) * v
		switch {
		case f > math.MaxInt16:
			samples[i] = math.MaxInt16
		case f < math.MinInt16:
			samples[i] = math.MinInt16
		default:
			samples[i] = int16(f)
		}
	}
}
