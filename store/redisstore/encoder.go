package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/statelessauth"
)

// CurrentSchemaVersion is written by Encode.
const CurrentSchemaVersion = 1

const (
	statusActive   = 0
	statusDisabled = 1
)

// ErrCorruptRecord reports a stored record that cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt principal record")

// Encode serializes p without its ID, which lives in the key.
//
// v1: version | role | status | email(u8 len) | hash(u8 len) |
// first(u16 len) | last(u16 len) | createdAt(i64 unix seconds)
func Encode(p statelessauth.Principal) ([]byte, error) {
	if len(p.Email) > 255 {
		return nil, errors.New("email too long")
	}
	if len(p.PasswordHash) > 255 {
		return nil, errors.New("password hash too long")
	}
	if len(p.FirstName) > 0xFFFF || len(p.LastName) > 0xFFFF {
		return nil, errors.New("name too long")
	}

	var buf bytes.Buffer
	buf.Grow(16 + len(p.Email) + len(p.PasswordHash) + len(p.FirstName) + len(p.LastName))

	buf.WriteByte(CurrentSchemaVersion)
	buf.WriteByte(byte(p.Role))
	if p.Active {
		buf.WriteByte(statusActive)
	} else {
		buf.WriteByte(statusDisabled)
	}

	buf.WriteByte(byte(len(p.Email)))
	buf.WriteString(p.Email)
	buf.WriteByte(byte(len(p.PasswordHash)))
	buf.WriteString(p.PasswordHash)

	_ = binary.Write(&buf, binary.BigEndian, uint16(len(p.FirstName)))
	buf.WriteString(p.FirstName)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(p.LastName)))
	buf.WriteString(p.LastName)

	_ = binary.Write(&buf, binary.BigEndian, p.CreatedAt.Unix())

	return buf.Bytes(), nil
}

// Decode parses a record written by Encode. The returned principal has no ID.
func Decode(data []byte) (statelessauth.Principal, error) {
	var p statelessauth.Principal

	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: empty", ErrCorruptRecord)
	}
	if version != CurrentSchemaVersion {
		return p, fmt.Errorf("%w: unsupported schema version %d", ErrCorruptRecord, version)
	}

	role, err := r.ReadByte()
	if err != nil {
		return p, corrupt(err)
	}
	p.Role = statelessauth.Role(role)

	status, err := r.ReadByte()
	if err != nil {
		return p, corrupt(err)
	}
	p.Active = status == statusActive

	if p.Email, err = readString8(r); err != nil {
		return p, corrupt(err)
	}
	if p.PasswordHash, err = readString8(r); err != nil {
		return p, corrupt(err)
	}
	if p.FirstName, err = readString16(r); err != nil {
		return p, corrupt(err)
	}
	if p.LastName, err = readString16(r); err != nil {
		return p, corrupt(err)
	}

	var created int64
	if err := binary.Read(r, binary.BigEndian, &created); err != nil {
		return p, corrupt(err)
	}
	p.CreatedAt = time.Unix(created, 0).UTC()

	if r.Len() != 0 {
		return p, fmt.Errorf("%w: %d trailing bytes", ErrCorruptRecord, r.Len())
	}
	return p, nil
}

func readString8(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readString16(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readN(r *bytes.Reader, n int) (string, error) {
	if n > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
}
