package pqc

import (
	"encoding/binary"
	"fmt"
)

// Wire envelope magics, per the binary layout: magic(4) + algorithm(1) +
// kem_ct_len(2) + kem_ct + nonce(12) + aead_ct_len(4) + aead_ct for the
// hybrid envelope, and magic(4) + salt(16) + iv(16) + hmac(32) +
// ct_len(4) + ct for the password envelope.
var (
	hybridMagic = [4]byte{'P', 'S', 'H', '1'}
	aesMagic    = [4]byte{'P', 'S', 'A', '1'}
)

const gcmNonceSize = 12

func encodeHybridEnvelope(level Level, kemCiphertext, nonce, aeadCiphertext []byte) []byte {
	buf := make([]byte, 0, 4+1+2+len(kemCiphertext)+gcmNonceSize+4+len(aeadCiphertext))
	buf = append(buf, hybridMagic[:]...)
	buf = append(buf, byte(level))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(kemCiphertext)))
	buf = append(buf, kemCiphertext...)
	buf = append(buf, nonce...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(aeadCiphertext)))
	buf = append(buf, aeadCiphertext...)
	return buf
}

func decodeHybridEnvelope(data []byte) (level Level, kemCiphertext, nonce, aeadCiphertext []byte, err error) {
	if len(data) < 4+1+2 {
		return 0, nil, nil, nil, fmt.Errorf("%w: envelope too short", ErrMalformed)
	}
	if [4]byte(data[:4]) != hybridMagic {
		return 0, nil, nil, nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	level = Level(data[4])
	kemLen := int(binary.BigEndian.Uint16(data[5:7]))
	off := 7

	if len(data) < off+kemLen+gcmNonceSize+4 {
		return 0, nil, nil, nil, fmt.Errorf("%w: truncated kem ciphertext/nonce", ErrMalformed)
	}
	kemCiphertext = data[off : off+kemLen]
	off += kemLen

	nonce = data[off : off+gcmNonceSize]
	off += gcmNonceSize

	aeadLen := int(binary.BigEndian.Uint32(data[off : off+4]))
	off += 4

	if len(data) != off+aeadLen {
		return 0, nil, nil, nil, fmt.Errorf("%w: truncated aead ciphertext", ErrMalformed)
	}
	aeadCiphertext = data[off : off+aeadLen]

	return level, kemCiphertext, nonce, aeadCiphertext, nil
}

func encodeAESEnvelope(salt, iv, tag, ciphertext []byte) []byte {
	buf := make([]byte, 0, 4+len(salt)+len(iv)+len(tag)+4+len(ciphertext))
	buf = append(buf, aesMagic[:]...)
	buf = append(buf, salt...)
	buf = append(buf, iv...)
	buf = append(buf, tag...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(ciphertext)))
	buf = append(buf, ciphertext...)
	return buf
}

func decodeAESEnvelope(data []byte) (salt, iv, tag, ciphertext []byte, err error) {
	const headerLen = 4 + 16 + 16 + 32 + 4
	if len(data) < headerLen {
		return nil, nil, nil, nil, fmt.Errorf("%w: envelope too short", ErrMalformed)
	}
	if [4]byte(data[:4]) != aesMagic {
		return nil, nil, nil, nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	off := 4
	salt = data[off : off+16]
	off += 16
	iv = data[off : off+16]
	off += 16
	tag = data[off : off+32]
	off += 32
	ctLen := int(binary.BigEndian.Uint32(data[off : off+4]))
	off += 4

	if len(data) != off+ctLen {
		return nil, nil, nil, nil, fmt.Errorf("%w: truncated ciphertext", ErrMalformed)
	}
	ciphertext = data[off : off+ctLen]

	return salt, iv, tag, ciphertext, nil
}
