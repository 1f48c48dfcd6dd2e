package protocol

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/semiotic/agentium/internal/errx"
)

// ReadFull reads exactly len(buf) bytes from r, retrying short reads.
func ReadFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return errx.Wrap(ErrRead, err)
	}
	return nil
}

// ReadFullEOF is ReadFull except that a clean peer close before the first
// byte is reported as ErrPeerClosed, so callers waiting for the next command
// can tell a detached controller from a broken frame.
func ReadFullEOF(r io.Reader, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if n == 0 && err == io.EOF {
		return ErrPeerClosed
	}
	return errx.Wrap(ErrRead, err)
}

// SendAll writes all of buf to w, looping over partial writes.
func SendAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return errx.Wrap(ErrShortWrite, err)
		}
		buf = buf[n:]
	}
	return nil
}

// ReadHeader reads and validates a command header.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderLen]byte
	if err := ReadFullEOF(r, buf[:]); err != nil {
		return Header{}, err
	}
	h := Header{
		Magic: binary.LittleEndian.Uint32(buf[0:4]),
		Kind:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	if h.Magic != CmdMagic {
		return h, errx.With(ErrBadMagic, ": 0x%08x", h.Magic)
	}
	return h, nil
}

// WriteHeader writes a command or reply header.
func WriteHeader(w io.Writer, kind uint32) error {
	var buf [HeaderLen]byte
	binary.LittleEndian.PutUint32(buf[0:4], CmdMagic)
	binary.LittleEndian.PutUint32(buf[4:8], kind)
	return SendAll(w, buf[:])
}

// ReadUint32 reads one little-endian 32-bit word.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads one little-endian 64-bit word.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteUint32 writes one little-endian 32-bit word.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return SendAll(w, buf[:])
}

// WriteUint64 writes one little-endian 64-bit word.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return SendAll(w, buf[:])
}

// ReadLenPrefixed reads a 4-byte length prefix and that many bytes. The
// prefix counts payload bytes only; no terminator is carried on the wire.
func ReadLenPrefixed(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteLenPrefixed writes a 4-byte length prefix followed by buf.
func WriteLenPrefixed(w io.Writer, buf []byte) error {
	if err := WriteUint32(w, uint32(len(buf))); err != nil {
		return err
	}
	return SendAll(w, buf)
}

// ReadStringField reads a fixed StringFieldLen-byte field and extracts the
// NUL-terminated string within it.
func ReadStringField(r io.Reader) (string, error) {
	var buf [StringFieldLen]byte
	if err := ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	i := bytes.IndexByte(buf[:], 0)
	if i < 0 {
		return "", ErrStringNotFound
	}
	return string(buf[:i]), nil
}

// WriteStringField writes s into a fixed StringFieldLen-byte field,
// NUL-terminated and zero-padded.
func WriteStringField(w io.Writer, s string) error {
	if len(s) >= StringFieldLen {
		return errx.With(ErrStringTooLong, ": %d bytes", len(s))
	}
	var buf [StringFieldLen]byte
	copy(buf[:], s)
	return SendAll(w, buf[:])
}

// WriteChunk frames one exec chunk: kind byte, 4-byte payload length,
// payload.
func WriteChunk(w io.Writer, kind uint8, payload []byte) error {
	hdr := [5]byte{kind}
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(payload)))
	if err := SendAll(w, hdr[:]); err != nil {
		return err
	}
	return SendAll(w, payload)
}

// ReadChunk reads one exec chunk and returns its kind and payload.
func ReadChunk(r io.Reader) (uint8, []byte, error) {
	var hdr [5]byte
	if err := ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	kind := hdr[0]
	size := binary.LittleEndian.Uint32(hdr[1:])
	if size == 0 {
		return kind, nil, nil
	}
	payload := make([]byte, size)
	if err := ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return kind, payload, nil
}

// WriteBanner sends the 260-byte connect banner: ServerMagicVersion then the
// OS name, zero-padded to BannerNameLen.
func WriteBanner(w io.Writer, sysname string) error {
	buf := make([]byte, 4+BannerNameLen)
	binary.LittleEndian.PutUint32(buf[0:4], ServerMagicVersion)
	copy(buf[4:], sysname)
	return SendAll(w, buf)
}

// ReadBanner consumes the banner and returns the OS name the agent reported.
func ReadBanner(r io.Reader) (string, error) {
	buf := make([]byte, 4+BannerNameLen)
	if err := ReadFullEOF(r, buf); err != nil {
		return "", err
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != ServerMagicVersion {
		return "", errx.With(ErrBadMagic, ": banner 0x%08x", binary.LittleEndian.Uint32(buf[0:4]))
	}
	name := buf[4:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name), nil
}
