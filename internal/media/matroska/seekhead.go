package matroska

import (
	"bytes"
	"encoding/binary"
)

// seekHeadTargets lists the elements a non-streaming SeekHead points at, in
// write order. Every entry resolves to a fixed-width Seek element (4-byte
// target ID, 8-byte position), so the reserved hole and the backpatched
// replacement are always byte-identical in length.
var seekHeadTargets = [seekHeadEntries]uint32{idInfo, idTracks, idCues}

func buildSeekEntry(targetID uint32, pos int64) []byte {
	var seekID bytes.Buffer
	writeElement(&seekID, idSeekID, encodeElementID(targetID))

	posBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(posBuf, uint64(pos))
	var seekPos bytes.Buffer
	writeElement(&seekPos, idSeekPos, posBuf)

	var entry bytes.Buffer
	entry.Write(seekID.Bytes())
	entry.Write(seekPos.Bytes())

	var out bytes.Buffer
	writeElement(&out, idSeek, entry.Bytes())
	return out.Bytes()
}

func makeSeekHeadHole() []byte {
	return makeSeekHead([3]int64{0, 0, 0})
}

func makeSeekHeadReal(infoPos, tracksPos, cuesPos int64) []byte {
	return makeSeekHead([3]int64{infoPos, tracksPos, cuesPos})
}

func makeSeekHead(positions [3]int64) []byte {
	var body bytes.Buffer
	for i, id := range seekHeadTargets {
		body.Write(buildSeekEntry(id, positions[i]))
	}
	var out bytes.Buffer
	writeElement(&out, idSeekHead, body.Bytes())
	return out.Bytes()
}
