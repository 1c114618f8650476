package codec

import (
	"log/slog"
	"sync"

	mediaerrors "github.com/alxayo/mediabox/internal/errors"
)

// Registry holds the registered codec-engine providers this process knows
// about and dispatches New* construction calls to whichever provider's Supports
// predicate matches first (spec §6's supports(codec, config) -> bool). A
// Registry has no state beyond its provider lists; callers own the
// lifecycle of whatever concrete decoder/encoder it constructs.
type Registry struct {
	mu sync.Mutex

	videoDecoders []VideoDecoderSupport
	audioDecoders []AudioDecoderSupport
	videoEncoders []VideoEncoderSupport
	audioEncoders []AudioEncoderSupport
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) RegisterVideoDecoder(p VideoDecoderSupport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videoDecoders = append(r.videoDecoders, p)
}

func (r *Registry) RegisterAudioDecoder(p AudioDecoderSupport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audioDecoders = append(r.audioDecoders, p)
}

func (r *Registry) RegisterVideoEncoder(p VideoEncoderSupport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videoEncoders = append(r.videoEncoders, p)
}

func (r *Registry) RegisterAudioEncoder(p AudioEncoderSupport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audioEncoders = append(r.audioEncoders, p)
}

// NewVideoDecoder returns the first registered provider willing to decode
// config.Codec, or a CodecUnavailableError.
func (r *Registry) NewVideoDecoder(config DecoderConfig) (VideoDecoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.videoDecoders {
		if p.Supports(config.Codec, config) {
			return p.New(config)
		}
	}
	return nil, mediaerrors.NewCodecUnavailable(mediaerrors.RoleDecoder, config.Codec)
}

// NewAudioDecoder mirrors NewVideoDecoder for audio.
func (r *Registry) NewAudioDecoder(config DecoderConfig) (AudioDecoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.audioDecoders {
		if p.Supports(config.Codec, config) {
			return p.New(config)
		}
	}
	return nil, mediaerrors.NewCodecUnavailable(mediaerrors.RoleDecoder, config.Codec)
}

// NewVideoEncoder returns the first registered provider willing to encode
// codecID at the given params, or a CodecUnavailableError.
func (r *Registry) NewVideoEncoder(codecID string, params EncoderParams) (VideoEncoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.videoEncoders {
		if p.Supports(codecID, params) {
			return p.New(params)
		}
	}
	return nil, mediaerrors.NewCodecUnavailable(mediaerrors.RoleEncoder, codecID)
}

// NewAudioEncoder mirrors NewVideoEncoder for audio.
func (r *Registry) NewAudioEncoder(codecID string, params EncoderParams) (AudioEncoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.audioEncoders {
		if p.Supports(codecID, params) {
			return p.New(params)
		}
	}
	return nil, mediaerrors.NewCodecUnavailable(mediaerrors.RoleEncoder, codecID)
}

// CanEncodeAudio reports whether any registered audio encoder provider
// will take on codecID at the given sample rate/channel count, without
// constructing one. Used by the conversion planner's fallback-rate check
// (spec §4.11) ahead of actually building an encoder.
func (r *Registry) CanEncodeAudio(codecID string, sampleRate, channels int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	params := EncoderParams{SampleRate: sampleRate, Channels: channels}
	for _, p := range r.audioEncoders {
		if p.Supports(codecID, params) {
			return true
		}
	}
	return false
}

// CanEncodeVideo mirrors CanEncodeAudio for video.
func (r *Registry) CanEncodeVideo(codecID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.videoEncoders {
		if p.Supports(codecID, EncoderParams{}) {
			return true
		}
	}
	return false
}

// LogRegistration is a one-shot observability hook mirroring the teacher's
// one-shot codec-detection logging: call after registering a provider to
// record which codecs this process can now handle.
func LogRegistration(logger *slog.Logger, role string, codecID string) {
	if logger == nil {
		return
	}
	logger.Info("codec provider registered", "role", role, "codec", codecID)
}
