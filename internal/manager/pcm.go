package manager

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// EncodePCM packs samples as little-endian float32 and base64-encodes them.
func EncodePCM(samples []float32) string {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodePCM reverses EncodePCM.
func DecodePCM(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decode pcm: %d bytes is not a multiple of 4", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}
