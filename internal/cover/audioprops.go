// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/presenced/presenced/internal/models"
)

// readAudioProperties sniffs stream properties from the container
// header. Only FLAC and WAV keep them in a fixed, cheap-to-read spot;
// other formats report zero values and the corresponding template keys
// stay unset.
func readAudioProperties(f *os.File) (models.AudioProperties, error) {
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return models.AudioProperties{}, err
	}
	switch string(magic[:]) {
	case "fLaC":
		return flacProperties(f)
	case "RIFF":
		return wavProperties(f)
	}
	return models.AudioProperties{}, nil
}

// flacProperties decodes the mandatory STREAMINFO block that directly
// follows the stream marker. Sample rate (20 bits), channels-1 (3) and
// bits-per-sample-1 (5) are packed after the block/frame size fields,
// followed by a 36-bit total sample count.
func flacProperties(f *os.File) (models.AudioProperties, error) {
	var header [4]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return models.AudioProperties{}, err
	}
	if header[0]&0x7f != 0 {
		return models.AudioProperties{}, nil
	}
	var info [34]byte
	if _, err := io.ReadFull(f, info[:]); err != nil {
		return models.AudioProperties{}, err
	}

	props := models.AudioProperties{
		SampleRateHz: int(info[10])<<12 | int(info[11])<<4 | int(info[12])>>4,
		Channels:     int(info[12]>>1)&0x07 + 1,
		BitDepth:     (int(info[12]&0x01)<<4 | int(info[13])>>4) + 1,
	}

	totalSamples := uint64(info[13]&0x0f)<<32 | uint64(info[14])<<24 |
		uint64(info[15])<<16 | uint64(info[16])<<8 | uint64(info[17])

	// FLAC does not store a bitrate; estimate the overall one from the
	// file size and play time.
	if totalSamples > 0 && props.SampleRateHz > 0 {
		if st, err := f.Stat(); err == nil {
			seconds := float64(totalSamples) / float64(props.SampleRateHz)
			props.BitrateKbps = int(float64(st.Size()) * 8 / seconds / 1000)
		}
	}
	return props, nil
}

// wavProperties walks the RIFF chunk list to the fmt chunk.
func wavProperties(f *os.File) (models.AudioProperties, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return models.AudioProperties{}, err
	}
	if string(hdr[4:8]) != "WAVE" {
		return models.AudioProperties{}, nil
	}

	for i := 0; i < 64; i++ {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return models.AudioProperties{}, nil
		}
		size := binary.LittleEndian.Uint32(chunk[4:8])
		if string(chunk[0:4]) != "fmt " {
			// Chunks are word-aligned.
			if _, err := f.Seek(int64(size+size%2), io.SeekCurrent); err != nil {
				return models.AudioProperties{}, err
			}
			continue
		}
		if size < 16 {
			return models.AudioProperties{}, nil
		}
		var body [16]byte
		if _, err := io.ReadFull(f, body[:]); err != nil {
			return models.AudioProperties{}, err
		}
		return models.AudioProperties{
			Channels:     int(binary.LittleEndian.Uint16(body[2:4])),
			SampleRateHz: int(binary.LittleEndian.Uint32(body[4:8])),
			BitrateKbps:  int(binary.LittleEndian.Uint32(body[8:12])) * 8 / 1000,
			BitDepth:     int(binary.LittleEndian.Uint16(body[14:16])),
		}, nil
	}
	return models.AudioProperties{}, nil
}
