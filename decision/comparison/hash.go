package comparison

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
)

// Hash returns a content hash of the input. Equal inputs, including record
// order, produce equal hashes. Every field is length-prefixed so values
// containing separators cannot collide with a different record layout.
func (in Input) Hash() string {
	h := sha256.New()
	writeField(h, "az")
	writeDeck(h, in.FileName1, in.File1Data)
	writeDeck(h, in.FileName2, in.File2Data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns a content hash of the US input.
func (in USInput) Hash() string {
	h := sha256.New()
	writeField(h, "us")
	for _, deck := range []struct {
		name    string
		records []USRecord
	}{{in.FileName1, in.File1Data}, {in.FileName2, in.File2Data}} {
		writeField(h, deck.name)
		writeField(h, strconv.Itoa(len(deck.records)))
		for _, r := range deck.records {
			writeField(h, r.NPANXX)
			writeField(h, r.State)
			writeRate(h, r.InterRate)
			writeRate(h, r.IntraRate)
			writeRate(h, r.IJRate)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeDeck(h hash.Hash, name string, records []StandardizedRecord) {
	writeField(h, name)
	writeField(h, strconv.Itoa(len(records)))
	for _, r := range records {
		writeField(h, r.DialCode)
		writeField(h, r.DestName)
		writeRate(h, r.Rate)
	}
}

// writeField writes s as "<len>:<s>".
func writeField(h hash.Hash, s string) {
	h.Write([]byte(strconv.Itoa(len(s))))
	h.Write([]byte{':'})
	h.Write([]byte(s))
}

func writeRate(h hash.Hash, rate float64) {
	writeField(h, strconv.FormatFloat(rate, 'g', -1, 64))
}
