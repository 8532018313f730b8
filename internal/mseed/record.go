// Package mseed decodes miniSEED 2 data records as returned by
// fdsnws-dataselect.
package mseed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

var (
	ErrShortRecord         = errors.New("mseed: short record")
	ErrInvalidHeader       = errors.New("mseed: invalid fixed header")
	ErrUnsupportedEncoding = errors.New("mseed: unsupported encoding")
	ErrIntegrity           = errors.New("mseed: steim integrity check failed")
)

// Encoding is the SEED data encoding format from blockette 1000.
type Encoding uint8

const (
	EncodingInt16   Encoding = 1
	EncodingInt32   Encoding = 3
	EncodingFloat32 Encoding = 4
	EncodingFloat64 Encoding = 5
	EncodingSteim1  Encoding = 10
	EncodingSteim2  Encoding = 11
)

func (e Encoding) String() string {
	switch e {
	case EncodingInt16:
		return "INT16"
	case EncodingInt32:
		return "INT32"
	case EncodingFloat32:
		return "FLOAT32"
	case EncodingFloat64:
		return "FLOAT64"
	case EncodingSteim1:
		return "STEIM1"
	case EncodingSteim2:
		return "STEIM2"
	default:
		return fmt.Sprintf("ENCODING(%d)", uint8(e))
	}
}

const (
	fixedHeaderLen = 48
	minRecordLen   = 1 << 7
	maxRecordLen   = 1 << 20

	blocketteRate = 100
	blockette1000 = 1000

	activityTimeCorrected = 0x02
)

// Record is one decoded data record.
type Record struct {
	SeedID       models.SeedID
	Quality      byte
	StartTime    time.Time
	SampleRate   float64
	Encoding     Encoding
	RecordLength int
	Samples      []float64
}

// EndTime is the time of the last sample.
func (r Record) EndTime() time.Time {
	if len(r.Samples) == 0 || r.SampleRate <= 0 {
		return r.StartTime
	}
	return r.StartTime.Add(time.Duration(float64(len(r.Samples)-1) / r.SampleRate * float64(time.Second)))
}

// Parse decodes every record in a miniSEED byte stream. Records without
// samples (log or detection records) are skipped.
func Parse(data []byte) ([]Record, error) {
	var records []Record
	for off := 0; off < len(data); {
		if allZero(data[off:]) {
			break
		}
		rec, n, err := ParseRecord(data[off:])
		if err != nil {
			return records, fmt.Errorf("record at byte %d: %w", off, err)
		}
		off += n
		if len(rec.Samples) > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

// ParseRecord decodes the record at the start of data and returns it with
// its length in bytes.
func ParseRecord(data []byte) (Record, int, error) {
	if len(data) < fixedHeaderLen {
		return Record{}, 0, ErrShortRecord
	}

	order, err := headerByteOrder(data)
	if err != nil {
		return Record{}, 0, err
	}

	rec := Record{
		SeedID: models.SeedID{
			Station:  trimCode(data[8:13]),
			Location: trimCode(data[13:15]),
			Channel:  trimCode(data[15:18]),
			Network:  trimCode(data[18:20]),
		},
		Quality: data[6],
	}

	nsamples := int(order.Uint16(data[30:32]))
	rec.SampleRate = sampleRate(int16(order.Uint16(data[32:34])), int16(order.Uint16(data[34:36])))

	start, err := btime(data[20:30], order)
	if err != nil {
		return Record{}, 0, err
	}
	if data[36]&activityTimeCorrected == 0 {
		if corr := int32(order.Uint32(data[40:44])); corr != 0 {
			start = start.Add(time.Duration(corr) * 100 * time.Microsecond)
		}
	}
	rec.StartTime = start

	numBlockettes := int(data[39])
	dataOffset := int(order.Uint16(data[44:46]))
	next := int(order.Uint16(data[46:48]))

	var (
		haveB1000 bool
		dataOrder binary.ByteOrder = binary.BigEndian
	)
	for i := 0; next != 0 && i < numBlockettes; i++ {
		if next+4 > len(data) {
			return Record{}, 0, ErrShortRecord
		}
		kind := order.Uint16(data[next : next+2])
		following := int(order.Uint16(data[next+2 : next+4]))

		switch kind {
		case blockette1000:
			if next+8 > len(data) {
				return Record{}, 0, ErrShortRecord
			}
			rec.Encoding = Encoding(data[next+4])
			if data[next+5] == 0 {
				dataOrder = binary.LittleEndian
			}
			exp := data[next+6]
			if exp < 7 || exp > 20 {
				return Record{}, 0, fmt.Errorf("%w: record length exponent %d", ErrInvalidHeader, exp)
			}
			rec.RecordLength = 1 << exp
			haveB1000 = true
		case blocketteRate:
			if next+8 > len(data) {
				return Record{}, 0, ErrShortRecord
			}
			if rate := math.Float32frombits(order.Uint32(data[next+4 : next+8])); rate > 0 {
				rec.SampleRate = float64(rate)
			}
		}

		if following != 0 && following <= next {
			return Record{}, 0, fmt.Errorf("%w: blockette chain loops at %d", ErrInvalidHeader, following)
		}
		next = following
	}

	if !haveB1000 {
		return Record{}, 0, fmt.Errorf("%w: missing blockette 1000", ErrInvalidHeader)
	}
	if rec.RecordLength > len(data) {
		return Record{}, 0, ErrShortRecord
	}
	if nsamples == 0 {
		return rec, rec.RecordLength, nil
	}
	if dataOffset < fixedHeaderLen || dataOffset >= rec.RecordLength {
		return Record{}, 0, fmt.Errorf("%w: data offset %d", ErrInvalidHeader, dataOffset)
	}

	samples, err := decode(rec.Encoding, data[dataOffset:rec.RecordLength], nsamples, dataOrder)
	if err != nil {
		return Record{}, 0, fmt.Errorf("%s: %w", rec.SeedID, err)
	}
	rec.Samples = samples
	return rec, rec.RecordLength, nil
}

// headerByteOrder guesses the header byte order from the start year.
func headerByteOrder(data []byte) (binary.ByteOrder, error) {
	if y := binary.BigEndian.Uint16(data[20:22]); y >= 1900 && y <= 2100 {
		return binary.BigEndian, nil
	}
	if y := binary.LittleEndian.Uint16(data[20:22]); y >= 1900 && y <= 2100 {
		return binary.LittleEndian, nil
	}
	return nil, fmt.Errorf("%w: cannot determine byte order", ErrInvalidHeader)
}

func btime(b []byte, order binary.ByteOrder) (time.Time, error) {
	year := int(order.Uint16(b[0:2]))
	doy := int(order.Uint16(b[2:4]))
	hour, minute, sec := int(b[4]), int(b[5]), int(b[6])
	fract := int(order.Uint16(b[8:10]))

	if doy < 1 || doy > 366 || hour > 23 || minute > 59 || sec > 60 || fract > 9999 {
		return time.Time{}, fmt.Errorf("%w: bad start time", ErrInvalidHeader)
	}
	t := time.Date(year, time.January, 1, hour, minute, sec, fract*100_000, time.UTC)
	return t.AddDate(0, 0, doy-1), nil
}

func sampleRate(factor, multiplier int16) float64 {
	f, m := float64(factor), float64(multiplier)
	if m == 0 {
		m = 1
	}
	switch {
	case f == 0:
		return 0
	case f > 0 && m > 0:
		return f * m
	case f > 0 && m < 0:
		return -f / m
	case f < 0 && m > 0:
		return -m / f
	default:
		return 1 / (f * m)
	}
}

func trimCode(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	start := 0
	for start < end && b[start] == ' ' {
		start++
	}
	return string(b[start:end])
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
