package bundlr

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shamank/sugar-go/pkg/model"
)

// SignatureTypeEthereum is the ANS-104 signature type for secp256k1 keys
// signing with EIP-191 personal messages.
const SignatureTypeEthereum uint16 = 3

const (
	ethereumSignatureLength = 65
	ethereumOwnerLength     = 65
	targetLength            = 32
	anchorLength            = 32
)

// DataItem is an ANS-104 data item: a signed envelope around one file's bytes
// and its tags, accepted by Bundlr nodes on /tx/{currency}.
type DataItem struct {
	SignatureType uint16
	Signature     []byte
	Owner         []byte
	Target        []byte
	Anchor        []byte
	Tags          []model.Tag
	Data          []byte
}

// NewDataItem returns an unsigned item with a random anchor, so two uploads of
// identical bytes still get distinct ids.
func NewDataItem(data []byte, tags []model.Tag) (*DataItem, error) {
	anchor := make([]byte, anchorLength)
	if _, err := rand.Read(anchor); err != nil {
		return nil, fmt.Errorf("generate anchor: %w", err)
	}
	return &DataItem{
		SignatureType: SignatureTypeEthereum,
		Anchor:        anchor,
		Tags:          tags,
		Data:          data,
	}, nil
}

// Sign sets the owner to the uncompressed public key of key and signs the
// deep hash of the item.
func (d *DataItem) Sign(key *ecdsa.PrivateKey) error {
	if key == nil {
		return errors.New("private key is required for signing")
	}
	d.SignatureType = SignatureTypeEthereum
	d.Owner = crypto.FromECDSAPub(&key.PublicKey)

	message, err := d.signatureData()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return fmt.Errorf("sign data item: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	d.Signature = sig
	return nil
}

// Verify checks that the signature was produced by the owner key.
func (d *DataItem) Verify() error {
	if len(d.Signature) != ethereumSignatureLength {
		return fmt.Errorf("invalid signature length %d", len(d.Signature))
	}
	message, err := d.signatureData()
	if err != nil {
		return err
	}
	sig := bytes.Clone(d.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if !bytes.Equal(crypto.FromECDSAPub(pub), d.Owner) {
		return errors.New("signature does not match owner")
	}
	return nil
}

// ID returns the item id: base64url(sha256(signature)) without padding.
func (d *DataItem) ID() string {
	sum := sha256.Sum256(d.Signature)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Bytes returns the binary encoding of a signed item.
func (d *DataItem) Bytes() ([]byte, error) {
	if len(d.Signature) != ethereumSignatureLength {
		return nil, errors.New("data item is not signed")
	}
	if len(d.Owner) != ethereumOwnerLength {
		return nil, fmt.Errorf("invalid owner length %d", len(d.Owner))
	}
	if err := checkOptional("target", d.Target, targetLength); err != nil {
		return nil, err
	}
	if err := checkOptional("anchor", d.Anchor, anchorLength); err != nil {
		return nil, err
	}
	tags := encodeTags(d.Tags)

	var buf bytes.Buffer
	buf.Grow(2 + len(d.Signature) + len(d.Owner) + 2 + targetLength + anchorLength + 16 + len(tags) + len(d.Data))
	buf.Write(binary.LittleEndian.AppendUint16(nil, d.SignatureType))
	buf.Write(d.Signature)
	buf.Write(d.Owner)
	writeOptional(&buf, d.Target)
	writeOptional(&buf, d.Anchor)
	buf.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(d.Tags))))
	buf.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(tags))))
	buf.Write(tags)
	buf.Write(d.Data)
	return buf.Bytes(), nil
}

// ParseDataItem decodes the binary form produced by Bytes.
func ParseDataItem(raw []byte) (*DataItem, error) {
	r := bytes.NewReader(raw)
	d := &DataItem{}
	if err := binary.Read(r, binary.LittleEndian, &d.SignatureType); err != nil {
		return nil, fmt.Errorf("read signature type: %w", err)
	}
	if d.SignatureType != SignatureTypeEthereum {
		return nil, fmt.Errorf("unsupported signature type %d", d.SignatureType)
	}
	var err error
	if d.Signature, err = readN(r, ethereumSignatureLength); err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	if d.Owner, err = readN(r, ethereumOwnerLength); err != nil {
		return nil, fmt.Errorf("read owner: %w", err)
	}
	if d.Target, err = readOptional(r, targetLength); err != nil {
		return nil, fmt.Errorf("read target: %w", err)
	}
	if d.Anchor, err = readOptional(r, anchorLength); err != nil {
		return nil, fmt.Errorf("read anchor: %w", err)
	}
	var tagCount, tagBytes uint64
	if err := binary.Read(r, binary.LittleEndian, &tagCount); err != nil {
		return nil, fmt.Errorf("read tag count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &tagBytes); err != nil {
		return nil, fmt.Errorf("read tag length: %w", err)
	}
	if tagBytes > uint64(r.Len()) {
		return nil, fmt.Errorf("tag length %d exceeds item", tagBytes)
	}
	encoded, _ := readN(r, int(tagBytes))
	if d.Tags, err = decodeTags(encoded); err != nil {
		return nil, err
	}
	if uint64(len(d.Tags)) != tagCount {
		return nil, fmt.Errorf("tag count %d does not match header %d", len(d.Tags), tagCount)
	}
	d.Data, _ = readN(r, r.Len())
	return d, nil
}

// signatureData is the deep hash the signer signs over.
func (d *DataItem) signatureData() ([]byte, error) {
	if len(d.Owner) != ethereumOwnerLength {
		return nil, fmt.Errorf("invalid owner length %d", len(d.Owner))
	}
	return deepHash([]any{
		[]byte("dataitem"),
		[]byte("1"),
		[]byte(strconv.Itoa(int(d.SignatureType))),
		d.Owner,
		d.Target,
		d.Anchor,
		encodeTags(d.Tags),
		d.Data,
	}), nil
}

// deepHash implements the Arweave deep hash over nested byte chunks.
func deepHash(chunk any) []byte {
	switch v := chunk.(type) {
	case []any:
		acc := sha384([]byte("list" + strconv.Itoa(len(v))))
		for _, c := range v {
			acc = sha384(acc, deepHash(c))
		}
		return acc
	case []byte:
		tag := sha384([]byte("blob" + strconv.Itoa(len(v))))
		return sha384(tag, sha384(v))
	default:
		panic(fmt.Sprintf("deepHash: unsupported chunk %T", chunk))
	}
}

func sha384(parts ...[]byte) []byte {
	h := sha512.New384()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// encodeTags writes tags in the Avro encoding of
// array<record{name: bytes, value: bytes}>. No tags encode to no bytes.
func encodeTags(tags []model.Tag) []byte {
	if len(tags) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(binary.AppendVarint(nil, int64(len(tags))))
	for _, tag := range tags {
		writeAvroBytes(&buf, []byte(tag.Name))
		writeAvroBytes(&buf, []byte(tag.Value))
	}
	buf.WriteByte(0)
	return buf.Bytes()
}

func writeAvroBytes(buf *bytes.Buffer, b []byte) {
	buf.Write(binary.AppendVarint(nil, int64(len(b))))
	buf.Write(b)
}

// decodeTags reverses encodeTags, accepting any Avro block layout.
func decodeTags(raw []byte) ([]model.Tag, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	r := bytes.NewReader(raw)
	var tags []model.Tag
	for {
		count, err := binary.ReadVarint(r)
		if err != nil {
			return nil, fmt.Errorf("read tag block: %w", err)
		}
		if count == 0 {
			break
		}
		if count < 0 {
			count = -count
			if _, err := binary.ReadVarint(r); err != nil {
				return nil, fmt.Errorf("read tag block size: %w", err)
			}
		}
		for i := int64(0); i < count; i++ {
			name, err := readAvroBytes(r)
			if err != nil {
				return nil, err
			}
			value, err := readAvroBytes(r)
			if err != nil {
				return nil, err
			}
			tags = append(tags, model.Tag{Name: string(name), Value: string(value)})
		}
	}
	return tags, nil
}

func readAvroBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadVarint(r)
	if err != nil {
		return nil, fmt.Errorf("read tag field length: %w", err)
	}
	if n < 0 || n > int64(r.Len()) {
		return nil, fmt.Errorf("invalid tag field length %d", n)
	}
	return readN(r, int(n))
}

func checkOptional(name string, b []byte, size int) error {
	if len(b) != 0 && len(b) != size {
		return fmt.Errorf("invalid %s length %d", name, len(b))
	}
	return nil
}

func writeOptional(buf *bytes.Buffer, b []byte) {
	if len(b) == 0 {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(b)
}

func readOptional(r *bytes.Reader, size int) ([]byte, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch present {
	case 0:
		return nil, nil
	case 1:
		return readN(r, size)
	default:
		return nil, fmt.Errorf("invalid presence byte %d", present)
	}
}

func readN(r *bytes.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
