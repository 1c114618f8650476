package matroska

// vp9SyncCode is the 3-byte frame_sync_code every VP9 key frame begins
// its color_config with, right after the one-byte profile/type prelude.
var vp9SyncCode = [3]byte{0x49, 0x83, 0x42}

// patchVP9ColorSpace rewrites the 3-bit color_space field of a VP9 key
// frame's uncompressed header in place, for the common profile-0 (8-bit)
// layout: byte 0 packs frame_marker/profile/show_existing_frame/
// frame_type/show_frame/error_resilient_mode, bytes 1-3 are the sync
// code, and color_space occupies the top 3 bits of byte 4. Frames that
// don't match this exact shape (non-key, non-profile-0, or
// show_existing_frame set) are returned unchanged.
func patchVP9ColorSpace(data []byte, colorSpace byte) []byte {
	if len(data) < 5 || colorSpace > 7 {
		return data
	}
	b0 := data[0]
	frameMarker := b0 >> 6
	profileLow := (b0 >> 5) & 1
	profileHigh := (b0 >> 4) & 1
	profile := (profileHigh << 1) | profileLow
	showExisting := (b0 >> 3) & 1
	frameType := (b0 >> 2) & 1

	if frameMarker != 0b10 || profile != 0 || showExisting != 0 || frameType != 0 {
		return data
	}
	if data[1] != vp9SyncCode[0] || data[2] != vp9SyncCode[1] || data[3] != vp9SyncCode[2] {
		return data
	}

	out := append([]byte(nil), data...)
	out[4] = (colorSpace << 5) | (out[4] & 0x1F)
	return out
}
