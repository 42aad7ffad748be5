package gap

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

var decryptionKey = []byte{91, 99, 219, 17, 59, 122, 243, 224, 177, 67, 85, 86, 200, 249, 83, 12}
var decryptionIV = []byte{113, 231, 4, 5, 53, 58, 119, 139, 250, 111, 188, 48, 50, 27, 149, 146}

const encryptionMarker = 0x0A0A0A0A

// decrypt undoes the container format wrapped around an AES-128-CBC
// encrypted tile: a 4-byte magic marker, an unencrypted header, a 4-byte
// encrypted payload length, the encrypted payload, an unencrypted footer,
// and finally the header's length stored as the last 4 bytes of the
// file. Tiles that don't start with the marker are returned unchanged.
func decrypt(data []byte) ([]byte, error) {
	if len(data) < 8 {
		return data, nil
	}
	if binary.LittleEndian.Uint32(data[:4]) != encryptionMarker {
		return data, nil
	}

	endPosition := uint64(len(data) - 4)
	headerSize := uint64(binary.LittleEndian.Uint32(data[len(data)-4:]))
	if 4+headerSize > endPosition {
		return nil, fmt.Errorf("gap: invalid header size %d", headerSize)
	}

	pos := uint64(4)
	header := data[pos : pos+headerSize]
	pos += headerSize

	if pos+4 > endPosition {
		return nil, fmt.Errorf("gap: truncated encrypted size field")
	}
	encryptedSize := uint64(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if 4+headerSize+4+encryptedSize > endPosition {
		return nil, fmt.Errorf("gap: invalid encrypted size %d", encryptedSize)
	}
	encrypted := data[pos : pos+encryptedSize]
	pos += encryptedSize

	footerSize := endPosition - encryptedSize - 4 - headerSize - 4
	footer := data[pos : pos+footerSize]

	plain, err := aesDecrypt(encrypted)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(header)+len(plain)+len(footer))
	out = append(out, header...)
	out = append(out, plain...)
	out = append(out, footer...)
	return out, nil
}

func aesDecrypt(encrypted []byte) ([]byte, error) {
	if len(encrypted)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("gap: encrypted data length %d is not a multiple of the block size", len(encrypted))
	}
	block, err := aes.NewCipher(decryptionKey)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, decryptionIV).CryptBlocks(plain, encrypted)
	return stripTrailingZeros(plain), nil
}

// stripTrailingZeros undoes zero-padding: encryption rounded the plaintext
// up to a block boundary with trailing zero bytes, so they are trimmed
// back off after decryption.
func stripTrailingZeros(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}
