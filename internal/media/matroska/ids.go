package matroska

// Element IDs, keeping the length-marker bits so they compare directly
// against what decodeVInt(keepMarker=true) returns.
const (
	idEBMLHeader             uint32 = 0x1A45DFA3
	idEBMLVersion            uint32 = 0x4286
	idEBMLReadVersion        uint32 = 0x42F7
	idEBMLMaxIDLength        uint32 = 0x42F2
	idEBMLMaxSizeLength      uint32 = 0x42F3
	idEBMLDocType            uint32 = 0x4282
	idEBMLDocTypeVersion     uint32 = 0x4287
	idEBMLDocTypeReadVersion uint32 = 0x4285

	idSegment uint32 = 0x18538067

	idSeekHead uint32 = 0x114D9B74
	idSeek     uint32 = 0x4DBB
	idSeekID   uint32 = 0x53AB
	idSeekPos  uint32 = 0x53AC

	idInfo          uint32 = 0x1549A966
	idTimestampScale uint32 = 0x2AD7B1
	idDuration      uint32 = 0x4489
	idMuxingApp     uint32 = 0x4D80
	idWritingApp    uint32 = 0x5741

	idTracks     uint32 = 0x1654AE6B
	idTrackEntry uint32 = 0xAE
	idTrackNum   uint32 = 0xD7
	idTrackUID   uint32 = 0x73C5
	idTrackType  uint32 = 0x83
	idCodecID    uint32 = 0x86
	idCodecPriv  uint32 = 0x63A2
	idVideo      uint32 = 0xE0
	idAudio      uint32 = 0xE1

	idPixelWidth  uint32 = 0xB0
	idPixelHeight uint32 = 0xBA

	idSamplingFrequency uint32 = 0xB5
	idChannels          uint32 = 0x9F
	idBitDepth          uint32 = 0x6264

	idCluster     uint32 = 0x1F43B675
	idTimestamp   uint32 = 0xE7
	idSimpleBlock uint32 = 0xA3
	idBlockGroup  uint32 = 0xA0
	idBlock       uint32 = 0xA1
	idBlockDuration uint32 = 0x9B
	idReferenceBlock uint32 = 0xFB

	idCues               uint32 = 0x1C53BB6B
	idCuePoint           uint32 = 0xBB
	idCueTime            uint32 = 0xB3
	idCueTrackPositions  uint32 = 0xB7
	idCueTrack           uint32 = 0xF7
	idCueClusterPosition uint32 = 0xF1
)

// trackTypeVideo/trackTypeAudio are Matroska TrackType enum values.
const (
	trackTypeVideo uint64 = 0x01
	trackTypeAudio uint64 = 0x02
)
