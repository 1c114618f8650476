package matroska

// codecIDFor maps an abstract mediabox codec identifier to its Matroska
// CodecID string (https://www.matroska.org/technical/codec_specs.html).
func codecIDFor(codec string) (string, bool) {
	switch codec {
	case "avc":
		return "V_MPEG4/ISO/AVC", true
	case "hevc":
		return "V_MPEGH/ISO/HEVC", true
	case "vp8":
		return "V_VP8", true
	case "vp9":
		return "V_VP9", true
	case "av1":
		return "V_AV1", true
	case "opus":
		return "A_OPUS", true
	case "vorbis":
		return "A_VORBIS", true
	case "aac":
		return "A_AAC", true
	case "pcm-s16":
		return "A_PCM/INT/LIT", true
	default:
		return "", false
	}
}

// codecFromID is the inverse of codecIDFor, used by the demuxer.
func codecFromID(id string) string {
	switch id {
	case "V_MPEG4/ISO/AVC":
		return "avc"
	case "V_MPEGH/ISO/HEVC":
		return "hevc"
	case "V_VP8":
		return "vp8"
	case "V_VP9":
		return "vp9"
	case "V_AV1":
		return "av1"
	case "A_OPUS":
		return "opus"
	case "A_VORBIS":
		return "vorbis"
	case "A_AAC":
		return "aac"
	case "A_PCM/INT/LIT", "A_PCM/INT/BIG":
		return "pcm-s16"
	default:
		return id
	}
}

// webMAllowedCodecs restricts the WebM variant to its permitted codec set.
var webMAllowedCodecs = map[string]bool{
	"vp8": true, "vp9": true, "av1": true, "opus": true, "vorbis": true,
}
