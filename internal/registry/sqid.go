package registry

import (
	"encoding/binary"
	"math/big"
	"math/rand"
	"strings"
)

// DefaultMinLength is the minimum encoded segment length when none is
// configured.
const DefaultMinLength = 8

const alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// sentinel is prepended to the payload bytes before base conversion so that
// leading zero bytes survive the big-integer round trip and padding digits
// can be stripped unambiguously.
const sentinel = 0x01

// Decoded is the result of decoding an id segment.
type Decoded struct {
	TypeNum      int
	Namespace    uint64
	HasNamespace bool
	Timestamp    int64
	Random       uint64
}

// ID is a fully resolved prefixed id.
type ID struct {
	Decoded
	Type string // model name resolved through the type registry
}

// Codec encodes (typeNum, namespace?, timestamp, random) tuples into opaque
// alphanumeric segments. The alphabet is a seeded Fisher-Yates shuffle of the
// 62-character alphanumeric set, so two deployments with different seeds
// produce different encodings for the same input.
type Codec struct {
	alphabet  []byte
	values    [128]int8
	minLength int
}

// NewCodec creates a codec for the given seed and minimum segment length.
// A minLength below 1 falls back to DefaultMinLength.
func NewCodec(seed int64, minLength int) *Codec {
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	c := &Codec{
		alphabet:  shuffledAlphabet(seed),
		minLength: minLength,
	}
	for i := range c.values {
		c.values[i] = -1
	}
	for i, ch := range c.alphabet {
		c.values[ch] = int8(i)
	}
	return c
}

// shuffledAlphabet is a seeded Fisher-Yates over the alphanumeric set.
func shuffledAlphabet(seed int64) []byte {
	a := []byte(alphanumeric)
	r := rand.New(rand.NewSource(seed))
	for i := len(a) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		a[i], a[j] = a[j], a[i]
	}
	return a
}

// Encode packs the tuple into an opaque segment of at least minLength
// characters. Encoding is deterministic for a given seed.
func (c *Codec) Encode(typeNum int, namespace *uint64, timestamp int64, random uint64) string {
	buf := make([]byte, 0, 32)
	buf = append(buf, sentinel)

	var flags byte
	if namespace != nil {
		flags |= 1
	}
	buf = append(buf, flags)
	buf = binary.AppendUvarint(buf, uint64(typeNum))
	if namespace != nil {
		buf = binary.AppendUvarint(buf, *namespace)
	}
	buf = binary.AppendUvarint(buf, uint64(timestamp))
	buf = binary.AppendUvarint(buf, random)

	n := new(big.Int).SetBytes(buf)
	base := big.NewInt(int64(len(c.alphabet)))
	mod := new(big.Int)

	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		digits = append(digits, c.alphabet[mod.Int64()])
	}
	// Digits come out least-significant first.
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	// Pad with the zero digit: leading zeros do not change the value, so
	// decoding strips them for free.
	if pad := c.minLength - len(digits); pad > 0 {
		return strings.Repeat(string(c.alphabet[0]), pad) + string(digits)
	}
	return string(digits)
}

// Decode unpacks a segment produced by Encode. Returns false for segments
// that are not valid encodings.
func (c *Codec) Decode(segment string) (Decoded, bool) {
	if segment == "" {
		return Decoded{}, false
	}
	n := new(big.Int)
	base := big.NewInt(int64(len(c.alphabet)))
	for i := 0; i < len(segment); i++ {
		ch := segment[i]
		if ch >= 128 || c.values[ch] < 0 {
			return Decoded{}, false
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(c.values[ch])))
	}

	buf := n.Bytes()
	if len(buf) < 2 || buf[0] != sentinel {
		return Decoded{}, false
	}
	flags := buf[1]
	rest := buf[2:]

	typeNum, rest, ok := readUvarint(rest)
	if !ok {
		return Decoded{}, false
	}
	d := Decoded{TypeNum: int(typeNum)}

	if flags&1 != 0 {
		var ns uint64
		ns, rest, ok = readUvarint(rest)
		if !ok {
			return Decoded{}, false
		}
		d.Namespace = ns
		d.HasNamespace = true
	}

	ts, rest, ok := readUvarint(rest)
	if !ok {
		return Decoded{}, false
	}
	d.Timestamp = int64(ts)

	rnd, rest, ok := readUvarint(rest)
	if !ok || len(rest) != 0 {
		return Decoded{}, false
	}
	d.Random = rnd
	return d, true
}

// DecodeID splits a prefixed id ("contact_xK92mQ1a") on the first underscore,
// decodes the body, and resolves the type number through the registry. A
// segment decoding to an unknown type number yields nil.
func (c *Codec) DecodeID(id string, reg *TypeRegistry) *ID {
	i := strings.Index(id, "_")
	if i <= 0 || i == len(id)-1 {
		return nil
	}
	d, ok := c.Decode(id[i+1:])
	if !ok {
		return nil
	}
	name, ok := reg.ModelName(d.TypeNum)
	if !ok {
		return nil
	}
	return &ID{Decoded: d, Type: name}
}

func readUvarint(b []byte) (uint64, []byte, bool) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, false
	}
	return v, b[n:], true
}
