// Package stream plays streaming URIs into a Discord voice connection.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"layeh.com/gopus"
)

var ErrSinkClosed = errors.New("audio sink is closed")

type playback struct {
	cancel context.CancelFunc
	gate   *gate
}

// VoiceSink decodes one URI at a time with ffmpeg, encodes it with Opus and
// sends it over a voice connection.
type VoiceSink struct {
	vc     *discordgo.VoiceConnection
	ffmpeg string
	log    zerolog.Logger

	volume atomic.Uint64

	mu     sync.Mutex
	cur    *playback
	closed bool
}

func NewVoiceSink(vc *discordgo.VoiceConnection, ffmpegPath string, log zerolog.Logger) *VoiceSink {
	s := &VoiceSink{
		vc:     vc,
		ffmpeg: ffmpegPath,
		log:    log.With().Str("component", "voice_sink").Str("guild", vc.GuildID).Logger(),
	}
	s.SetVolume(1)
	return s
}

// Play starts uri. onDone fires once when the stream ends, fails or is
// stopped.
func (s *VoiceSink) Play(uri string, volume float64, onDone func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if s.cur != nil {
		s.cur.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pcm, err := openPCM(ctx, s.ffmpeg, uri)
	if err != nil {
		cancel()
		return err
	}
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		cancel()
		_ = pcm.Close()
		return fmt.Errorf("encoder error: %w", err)
	}

	pb := &playback{cancel: cancel, gate: newGate()}
	s.cur = pb
	s.SetVolume(volume)

	go func() {
		_ = s.vc.Speaking(true)
		err := pump(ctx, pcm, enc, s.vc.OpusSend, pb.gate, s.currentVolume)
		if cerr := pcm.Close(); cerr != nil {
			s.log.Debug().Err(cerr).Msg("ffmpeg exit")
		}
		_ = s.vc.Speaking(false)

		s.mu.Lock()
		if s.cur == pb {
			s.cur = nil
		}
		s.mu.Unlock()
		cancel()

		switch {
		case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, context.Canceled):
			err = nil
			if msg := pcm.Stderr(); msg != "" {
				s.log.Warn().Str("stderr", msg).Msg("ffmpeg output")
			}
		default:
			s.log.Warn().Err(err).Str("stderr", pcm.Stderr()).Msg("playback failed")
		}
		onDone(err)
	}()
	return nil
}

func (s *VoiceSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil && s.cur.gate.pause() {
		_ = s.vc.Speaking(false)
	}
}

func (s *VoiceSink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil && s.cur.gate.resume() {
		_ = s.vc.Speaking(true)
	}
}

func (s *VoiceSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.cur.cancel()
	}
}

func (s *VoiceSink) SetVolume(v float64) {
	s.volume.Store(math.Float64bits(v))
}

func (s *VoiceSink) currentVolume() float64 {
	return math.Float64frombits(s.volume.Load())
}

func (s *VoiceSink) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.gate.isPaused()
}

func (s *VoiceSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Close stops playback and leaves the voice channel.
func (s *VoiceSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cur != nil {
		s.cur.cancel()
	}
	s.mu.Unlock()

	if err := s.vc.Disconnect(); err != nil {
		return fmt.Errorf("voice disconnect: %w", err)
	}
	return nil
}
