package registry

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"sync/atomic"
	"time"
)

var cuidCounter atomic.Uint64

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewCUID returns a collision-resistant id: a "c" prefix, the millisecond
// timestamp and a process counter in base36, and eight random base36
// characters. Used when an entity is created without a client-supplied id
// and the model's id strategy is cuid (the default).
func NewCUID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	count := strconv.FormatUint(cuidCounter.Add(1)%1296, 36)
	for len(count) < 2 {
		count = "0" + count
	}

	rnd := make([]byte, 8)
	max := big.NewInt(36)
	for i := range rnd {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is unrecoverable for id generation.
			panic(err)
		}
		rnd[i] = base36[n.Int64()]
	}
	return "c" + ts + count + string(rnd)
}
