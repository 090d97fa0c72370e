package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Format describes PCM sample layout
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// ParseWAV parses a RIFF/WAVE file and returns its format and sample data.
// Only integer PCM at 8 or 16 bits is accepted.
func ParseWAV(data []byte) (Format, []byte, error) {
	var format Format
	reader := bytes.NewReader(data)

	header := make([]byte, 12)
	if _, err := io.ReadFull(reader, header); err != nil {
		return format, nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return format, nil, fmt.Errorf("not a wav file")
	}

	var haveFmt bool
	for {
		chunkID := make([]byte, 4)
		if _, err := io.ReadFull(reader, chunkID); err != nil {
			if err == io.EOF {
				return format, nil, fmt.Errorf("wav file has no data chunk")
			}
			return format, nil, err
		}

		var chunkSize uint32
		if err := binary.Read(reader, binary.LittleEndian, &chunkSize); err != nil {
			return format, nil, err
		}

		switch string(chunkID) {
		case "fmt ":
			if chunkSize < 16 {
				return format, nil, fmt.Errorf("short fmt chunk")
			}
			var f struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(reader, binary.LittleEndian, &f); err != nil {
				return format, nil, err
			}
			if f.AudioFormat != 1 {
				return format, nil, fmt.Errorf("unsupported wav encoding %d", f.AudioFormat)
			}
			format = Format{SampleRate: int(f.SampleRate), Channels: int(f.Channels), BitDepth: int(f.BitsPerSample)}
			// Skip any extra format bytes, chunks are word aligned
			if _, err := reader.Seek(int64(pad(chunkSize)-16), io.SeekCurrent); err != nil {
				return format, nil, err
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return format, nil, fmt.Errorf("wav data before fmt chunk")
			}
			if format.Channels < 1 || format.SampleRate < 1 {
				return format, nil, fmt.Errorf("invalid wav format %+v", format)
			}
			if format.BitDepth != 8 && format.BitDepth != 16 {
				return format, nil, fmt.Errorf("unsupported bit depth %d", format.BitDepth)
			}
			size := int(chunkSize)
			if size > reader.Len() {
				size = reader.Len() // truncated file, keep what is there
			}
			audioData := make([]byte, size)
			if _, err := io.ReadFull(reader, audioData); err != nil {
				return format, nil, err
			}
			return format, audioData, nil

		default:
			if _, err := reader.Seek(int64(pad(chunkSize)), io.SeekCurrent); err != nil {
				return format, nil, err
			}
		}
	}
}

func pad(size uint32) uint32 {
	return size + size%2
}

// Convert resamples PCM in format f to interleaved stereo 16-bit at sampleRate
func Convert(f Format, data []byte, sampleRate int) []byte {
	bytesPerSample := f.BitDepth / 8
	frameSize := bytesPerSample * f.Channels
	if frameSize == 0 {
		return nil
	}
	inFrames := len(data) / frameSize

	sample := func(frame, ch int) int16 {
		off := frame*frameSize + ch*bytesPerSample
		if bytesPerSample == 1 {
			return int16(int(data[off])-128) << 8
		}
		return int16(binary.LittleEndian.Uint16(data[off:]))
	}
	stereo := func(frame int) (int16, int16) {
		l := sample(frame, 0)
		if f.Channels == 1 {
			return l, l
		}
		return l, sample(frame, 1)
	}

	outFrames := inFrames
	if f.SampleRate != sampleRate {
		outFrames = int(int64(inFrames) * int64(sampleRate) / int64(f.SampleRate))
	}
	out := make([]byte, outFrames*4)
	for i := 0; i < outFrames; i++ {
		src := i
		if f.SampleRate != sampleRate {
			src = int(int64(i) * int64(f.SampleRate) / int64(sampleRate))
		}
		if src >= inFrames {
			src = inFrames - 1
		}
		l, r := stereo(src)
		binary.LittleEndian.PutUint16(out[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(r))
	}
	return out
}
