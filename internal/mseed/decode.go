package mseed

import (
	"encoding/binary"
	"fmt"
	"math"
)

const steimFrameLen = 64

func decode(enc Encoding, b []byte, n int, order binary.ByteOrder) ([]float64, error) {
	switch enc {
	case EncodingInt16:
		return decodeFixed(b, n, 2, func(p []byte) float64 { return float64(int16(order.Uint16(p))) })
	case EncodingInt32:
		return decodeFixed(b, n, 4, func(p []byte) float64 { return float64(int32(order.Uint32(p))) })
	case EncodingFloat32:
		return decodeFixed(b, n, 4, func(p []byte) float64 { return float64(math.Float32frombits(order.Uint32(p))) })
	case EncodingFloat64:
		return decodeFixed(b, n, 8, func(p []byte) float64 { return math.Float64frombits(order.Uint64(p)) })
	case EncodingSteim1:
		return decodeSteim(b, n, order, steim1Diffs)
	case EncodingSteim2:
		return decodeSteim(b, n, order, steim2Diffs)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}
}

func decodeFixed(b []byte, n, size int, read func([]byte) float64) ([]float64, error) {
	if len(b) < n*size {
		return nil, fmt.Errorf("%w: need %d bytes of samples, have %d", ErrShortRecord, n*size, len(b))
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = read(b[i*size:])
	}
	return out, nil
}

type diffFunc func(nibble, word uint32, dst []int32) ([]int32, error)

// decodeSteim unpacks Steim1/2 frames. Word 0 of each frame carries the
// 2-bit nibbles describing words 1-15; words 1 and 2 of the first frame
// hold the first and last sample values.
func decodeSteim(b []byte, n int, order binary.ByteOrder, diffs diffFunc) ([]float64, error) {
	frames := len(b) / steimFrameLen
	if frames == 0 {
		return nil, fmt.Errorf("%w: no steim frames", ErrShortRecord)
	}

	var (
		x0, xn int32
		d      = make([]int32, 0, n)
		err    error
	)
	for f := 0; f < frames && len(d) < n; f++ {
		frame := b[f*steimFrameLen : (f+1)*steimFrameLen]
		ctrl := order.Uint32(frame)
		for w := 1; w < 16; w++ {
			word := order.Uint32(frame[w*4:])
			if f == 0 && w == 1 {
				x0 = int32(word)
				continue
			}
			if f == 0 && w == 2 {
				xn = int32(word)
				continue
			}
			nibble := (ctrl >> (30 - 2*uint(w))) & 3
			if d, err = diffs(nibble, word, d); err != nil {
				return nil, err
			}
		}
	}
	if len(d) < n {
		return nil, fmt.Errorf("%w: %d of %d steim differences", ErrShortRecord, len(d), n)
	}

	out := make([]float64, n)
	last := x0
	out[0] = float64(last)
	for i := 1; i < n; i++ {
		last += d[i]
		out[i] = float64(last)
	}
	if last != xn {
		return nil, fmt.Errorf("%w: last sample %d, expected %d", ErrIntegrity, last, xn)
	}
	return out, nil
}

func steim1Diffs(nibble, word uint32, dst []int32) ([]int32, error) {
	switch nibble {
	case 0:
		return dst, nil
	case 1:
		return unpack(dst, word, 4, 8), nil
	case 2:
		return unpack(dst, word, 2, 16), nil
	default:
		return append(dst, int32(word)), nil
	}
}

func steim2Diffs(nibble, word uint32, dst []int32) ([]int32, error) {
	dnib := word >> 30
	switch nibble {
	case 0:
		return dst, nil
	case 1:
		return unpack(dst, word, 4, 8), nil
	case 2:
		switch dnib {
		case 1:
			return unpack(dst, word, 1, 30), nil
		case 2:
			return unpack(dst, word, 2, 15), nil
		case 3:
			return unpack(dst, word, 3, 10), nil
		}
	case 3:
		switch dnib {
		case 0:
			return unpack(dst, word, 5, 6), nil
		case 1:
			return unpack(dst, word, 6, 5), nil
		case 2:
			return unpack(dst, word, 7, 4), nil
		}
	}
	return nil, fmt.Errorf("mseed: invalid steim2 nibble %d/%d", nibble, dnib)
}

// unpack appends count sign-extended values of the given bit width, most
// significant first.
func unpack(dst []int32, word uint32, count, bits int) []int32 {
	mask := uint32(1)<<uint(bits) - 1
	for i := count - 1; i >= 0; i-- {
		v := (word >> uint(i*bits)) & mask
		dst = append(dst, int32(v<<uint(32-bits))>>uint(32-bits))
	}
	return dst
}
