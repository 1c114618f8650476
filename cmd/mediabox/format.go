package main

import "github.com/alxayo/mediabox/internal/media/packet"

// isobmffCapability reports the codec set ISO-BMFF output accepts, per the
// sample description box list spec.md §4.3/§5 names (avc1/hvc1/vp08|vp09/
// av01/mp4a/Opus).
type isobmffCapability struct{}

func (isobmffCapability) Accepts(codec string) bool {
	switch codec {
	case "avc", "hevc", "vp8", "vp9", "av1", "aac", "opus":
		return true
	default:
		return false
	}
}

func (isobmffCapability) PreferredCodecs(kind packet.Kind) []string {
	if kind == packet.Video {
		return []string{"avc", "hevc", "av1"}
	}
	return []string{"aac", "opus"}
}

// matroskaCapability reports the codec set a Matroska/WebM output accepts.
// WebM restricts to VP8/VP9/AV1 + Opus/Vorbis and a "webm" DocType, per
// spec.md §4.4's WebM variant note; plain Matroska also accepts AVC/HEVC/AAC.
type matroskaCapability struct{ webm bool }

func (c matroskaCapability) Accepts(codec string) bool {
	switch codec {
	case "vp8", "vp9", "av1", "opus", "vorbis":
		return true
	case "avc", "hevc", "aac":
		return !c.webm
	default:
		return false
	}
}

func (c matroskaCapability) PreferredCodecs(kind packet.Kind) []string {
	if kind == packet.Video {
		if c.webm {
			return []string{"vp9", "av1"}
		}
		return []string{"avc", "vp9", "av1"}
	}
	if c.webm {
		return []string{"opus", "vorbis"}
	}
	return []string{"opus", "aac"}
}

func capabilityFor(format string, webm bool) interface {
	Accepts(codec string) bool
	PreferredCodecs(kind packet.Kind) []string
} {
	if format == "matroska" {
		return matroskaCapability{webm: webm}
	}
	return isobmffCapability{}
}
