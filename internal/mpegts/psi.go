package mpegts

import "github.com/tspipe/tspipe/internal/errs"

// PATEntry is one (program_number, pmt_pid) pair from a Program Association
// Table.
type PATEntry struct {
	ProgramNumber uint16
	ProgramPID    uint16
}

// parsePAT decodes a PAT section (pointer field already stripped by the
// caller) per spec §4.C: table_id, 12-bit section_length, a 16-bit
// stream/transport-stream id, then (section_length-5-4)/4 program entries.
func parsePAT(data []byte) ([]PATEntry, error) {
	if len(data) < 8 {
		return nil, errs.NotEnoughData("mpegts: PAT too short")
	}
	sectionLength := int(data[1]&0x0F)<<8 | int(data[2])
	if 3+sectionLength > len(data) {
		return nil, errs.NotEnoughData("mpegts: PAT section_length out of range")
	}
	numEntries := (sectionLength - 5 - 4) / 4
	if numEntries < 0 {
		return nil, errs.NotEnoughData("mpegts: PAT has no program entries")
	}

	entries := make([]PATEntry, 0, numEntries)
	off := 8
	for i := 0; i < numEntries; i++ {
		if off+4 > len(data) {
			return entries, errs.NotEnoughData("mpegts: PAT program entry truncated")
		}
		programNumber := uint16(data[off])<<8 | uint16(data[off+1])
		programPID := uint16(data[off+2]&0x1F)<<8 | uint16(data[off+3])
		entries = append(entries, PATEntry{ProgramNumber: programNumber, ProgramPID: programPID})
		off += 4
	}
	return entries, nil
}

// PMTEntry is one elementary stream's PID and stream type from a Program
// Map Table.
type PMTEntry struct {
	ElementaryPID uint16
	StreamType    StreamType
}

// PMT is a decoded Program Map Table: the PCR-carrying PID plus every
// elementary stream it declares.
type PMT struct {
	PCRPID  uint16
	Entries []PMTEntry
}

// parsePMT decodes a PMT section (pointer field already stripped) per spec
// §4.C: pcr_pid, program_info_length (skipped), then elementary entries
// consumed until the remaining-bytes counter reaches zero.
func parsePMT(data []byte) (PMT, error) {
	var pmt PMT
	if len(data) < 12 {
		return pmt, errs.NotEnoughData("mpegts: PMT too short")
	}
	sectionLength := int(data[1]&0x0F)<<8 | int(data[2])
	if 3+sectionLength > len(data) {
		return pmt, errs.NotEnoughData("mpegts: PMT section_length out of range")
	}
	pmt.PCRPID = uint16(data[8]&0x1F)<<8 | uint16(data[9])
	programInfoLength := int(data[10]&0x0F)<<8 | int(data[11])

	off := 12 + programInfoLength
	// Remaining bytes available for the elementary-stream loop: everything
	// up to (but not including) the trailing 4-byte CRC.
	remaining := 3 + sectionLength - off - 4
	for remaining > 0 {
		if off+5 > len(data) {
			return pmt, errs.NotEnoughData("mpegts: PMT elementary entry truncated")
		}
		streamType := data[off]
		elementaryPID := uint16(data[off+1]&0x1F)<<8 | uint16(data[off+2])
		infoLength := int(data[off+3]&0x03)<<8 | int(data[off+4])
		pmt.Entries = append(pmt.Entries, PMTEntry{
			ElementaryPID: elementaryPID,
			StreamType:    StreamTypeFromRegistryValue(streamType),
		})
		off += 5 + infoLength
		remaining -= 5 + infoLength
	}
	return pmt, nil
}
