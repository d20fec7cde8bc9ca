package jpegheader

// JPEG and JPEG-LS marker codes (ITU-T T.81 Table B.1, T.87 Table C.1),
// stored as the byte following 0xFF
const (
	markerSOF0  = 0xC0 // Baseline DCT
	markerSOF1  = 0xC1 // Extended sequential DCT
	markerSOF2  = 0xC2 // Progressive DCT
	markerSOF3  = 0xC3 // Lossless (sequential)
	markerDHT   = 0xC4
	markerJPG   = 0xC8
	markerDAC   = 0xCC
	markerSOF15 = 0xCF
	markerRST0  = 0xD0
	markerRST7  = 0xD7
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP14 = 0xEE
	markerSOF55 = 0xF7 // JPEG-LS start of frame
	markerLSE   = 0xF8 // JPEG-LS preset parameters
	markerTEM   = 0x01
)

// JPEG 2000 codestream markers (ITU-T T.800 Table A.1)
const (
	markerSOC = 0xFF4F
	markerCAP = 0xFF50
	markerSIZ = 0xFF51
	markerCOD = 0xFF52
	markerSOT = 0xFF90
	markerSOD = 0xFF93
)

// isSOF reports the DCT and lossless start of frame markers, excluding the
// DHT, JPG and DAC codes that share the range
func isSOF(m byte) bool {
	return m >= markerSOF0 && m <= markerSOF15 && m != markerDHT && m != markerJPG && m != markerDAC
}

// isLosslessSOF reports the process 14 family (sequential, differential,
// arithmetic)
func isLosslessSOF(m byte) bool {
	return m == markerSOF3 || m == 0xC7 || m == 0xCB || m == markerSOF15
}

// isStandalone reports markers without a length field
func isStandalone(m byte) bool {
	return m == markerTEM || (m >= markerRST0 && m <= markerRST7) || m == markerSOI || m == markerEOI
}

var (
	jp2Signature = []byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A}
	jxlSignature = []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' ', 0x0D, 0x0A, 0x87, 0x0A}
)
