package note

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes content fingerprints over the searchable fields of a
// recording. Two recordings that differ only in metadata (timestamps,
// duration, file size, audio path, ID) produce the same hash, so the sync
// loop can skip re-chunking and re-embedding them.
type Hasher struct{}

// NewHasher creates a content hasher.
func NewHasher() Hasher {
	return Hasher{}
}

// Hash fingerprints a recording's searchable content.
func (h Hasher) Hash(rec *Recording) string {
	return h.FromFields(rec.Title, rec.Summary, rec.Context, rec.Tags, rec.Transcript)
}

// FromFields computes the same fingerprint from bare field values. It is
// guaranteed to agree with Hash for an equivalent recording.
func (h Hasher) FromFields(title, summary, contextText string, tags []string, transcript string) string {
	d := sha256.New()
	// Fields and tag entries are separated with control bytes so that
	// adjacent fields can never be confused for one another
	// ("ab"+"c" vs "a"+"bc").
	d.Write([]byte(title))
	d.Write([]byte{0x00})
	d.Write([]byte(summary))
	d.Write([]byte{0x00})
	d.Write([]byte(contextText))
	d.Write([]byte{0x00})
	for _, tag := range tags {
		d.Write([]byte(tag))
		d.Write([]byte{0x1f})
	}
	d.Write([]byte{0x00})
	d.Write([]byte(transcript))
	return hex.EncodeToString(d.Sum(nil))
}
