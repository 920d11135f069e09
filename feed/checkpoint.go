package feed

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	commoncbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/veraison/go-cose"

	"github.com/DistributedWeb/ddatabase/flattree"
	"github.com/DistributedWeb/ddatabase/merkle"
)

// FeedState is the portable commitment to a feed's head: its length, byte
// length and the hash over the full root set at that length. An auditor
// holding a signed FeedState can later check that a feed still contains
// everything it contained when the state was signed.
type FeedState struct {
	Length     uint64 `cbor:"1,keyasint"`
	ByteLength uint64 `cbor:"2,keyasint"`
	RootsHash  []byte `cbor:"3,keyasint"`
	// Timestamp is unix milliseconds at signing time, so the same head can
	// be re-signed.
	Timestamp int64 `cbor:"4,keyasint"`
}

// NewCheckpointCodec returns the deterministic CBOR codec used for
// checkpoint payloads.
func NewCheckpointCodec() (commoncbor.CBORCodec, error) {
	return commoncbor.NewCBORCodec(
		commoncbor.NewDeterministicEncOpts(),
		commoncbor.NewDeterministicDecOpts(),
	)
}

// CheckpointSigner produces COSE Sign1 envelopes over feed states, signed
// with the feed's own key.
type CheckpointSigner struct {
	issuer    string
	cborCodec commoncbor.CBORCodec
}

func NewCheckpointSigner(issuer string, cborCodec commoncbor.CBORCodec) CheckpointSigner {
	return CheckpointSigner{issuer: issuer, cborCodec: cborCodec}
}

// State snapshots the feed head.
func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedState{
		Length:     f.length,
		ByteLength: f.byteLength,
		RootsHash:  merkle.TreeHash(f.gen.Roots()),
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Sign1 signs the feed's current state. Only the holder of the secret key
// can produce checkpoints.
func (cs CheckpointSigner) Sign1(f *Feed) ([]byte, error) {
	f.mu.Lock()
	secret := f.secretKey
	f.mu.Unlock()
	if secret == nil {
		return nil, ErrNotWritable
	}

	state := f.State()
	payload, err := cs.cborCodec.MarshalCBOR(state)
	if err != nil {
		return nil, err
	}

	signer, err := cose.NewSigner(cose.AlgorithmEd25519, ed25519.PrivateKey(secret))
	if err != nil {
		return nil, err
	}

	msg := cose.Sign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{
				cose.HeaderLabelAlgorithm:   cose.AlgorithmEd25519,
				cose.HeaderLabelContentType: "application/feedstate+cbor",
				cose.HeaderLabelKeyID:       []byte(cs.issuer),
			},
		},
		Payload: payload,
	}
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, err
	}
	return msg.MarshalCBOR()
}

// VerifyCheckpoint checks a signed checkpoint against a feed public key
// and returns the attested state.
func VerifyCheckpoint(cborCodec commoncbor.CBORCodec, data, publicKey []byte) (FeedState, error) {
	var state FeedState

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		return state, err
	}
	verifier, err := cose.NewVerifier(cose.AlgorithmEd25519, ed25519.PublicKey(publicKey))
	if err != nil {
		return state, err
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return state, fmt.Errorf("%w: checkpoint signature rejected", ErrInvalidProof)
	}
	if err := cborCodec.UnmarshalInto(msg.Payload, &state); err != nil {
		return state, err
	}
	return state, nil
}

// CheckState verifies that this feed still contains the tree the state
// commits to, by rehashing the full roots at the attested length.
func (f *Feed) CheckState(state FeedState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if state.Length > f.length {
		return fmt.Errorf("%w: feed is shorter than the attested state", ErrOutOfBounds)
	}
	indices, err := flattree.FullRoots(2 * state.Length)
	if err != nil {
		return err
	}
	roots := make([]*merkle.Node, len(indices))
	for k, r := range indices {
		if roots[k], err = f.store.getNode(r); err != nil {
			return err
		}
	}
	if !bytes.Equal(merkle.TreeHash(roots), state.RootsHash) {
		return fmt.Errorf("%w: attested roots differ", ErrChecksumFailed)
	}
	return nil
}
