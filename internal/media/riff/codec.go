package riff

import "strings"

// videoCodecFromFourCC maps a strf/BITMAPINFOHEADER compression FourCC to an
// abstract codec string (spec §6's codec space).
func videoCodecFromFourCC(fourCC string) string {
	switch strings.ToUpper(strings.TrimRight(fourCC, "\x00")) {
	case "H264", "X264", "AVC1", "DAVC", "VSSH":
		return "avc"
	case "HEVC", "HVC1", "H265":
		return "hevc"
	case "VP80":
		return "vp8"
	case "VP90":
		return "vp9"
	case "AV01":
		return "av1"
	case "MJPG", "MJPEG":
		return "mjpeg"
	case "", "DIB ", "RGB ":
		return "raw"
	default:
		return strings.ToLower(strings.TrimRight(fourCC, "\x00"))
	}
}

// WAVEFORMATEX format tags this package recognizes (subset of the registered
// Microsoft tag table).
const (
	wavTagPCM  = 0x0001
	wavTagMP3  = 0x0055
	wavTagAAC  = 0x00FF
	wavTagAC3  = 0x2000
	wavTagFLAC = 0xF1AC
)

// audioCodecFromFormatTag maps a strf/WAVEFORMATEX format tag to an abstract
// codec string, falling back on bitsPerSample to distinguish PCM widths.
func audioCodecFromFormatTag(tag uint16, bitsPerSample int) string {
	switch tag {
	case wavTagMP3:
		return "mp3"
	case wavTagAAC:
		return "aac"
	case wavTagAC3:
		return "ac3"
	case wavTagFLAC:
		return "flac"
	case wavTagPCM:
		if bitsPerSample == 8 {
			return "pcm-u8"
		}
		return "pcm-s16"
	default:
		return "pcm-s16"
	}
}
