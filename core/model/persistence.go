package model

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// SaveModel writes a fitted model (or a whole training result) to a file
// using gob encoding. Concrete estimator types are registered with gob by
// their packages, so interface-typed fields round-trip.
//
// Example:
//
//	res, _ := downscale.Train(p, y, opts)
//	err := model.SaveModel(res, "winter_tmin.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return SaveModelToWriter(model, file)
}

// LoadModel reads a gob-encoded model from a file into model, which must be
// a pointer to the same concrete type that was saved.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter gob-encodes a model to w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadModelFromReader gob-decodes a model from r.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	return nil
}

// ===========================================================================
//
//	Compressed container
//
// ===========================================================================

// Analog models keep their full training matrices, so serialized results can
// run to tens of megabytes per season. The compressed container wraps the gob
// payload in zstd with an xxhash64 checksum over the compressed bytes.
//
// Layout: magic "DSCM" | version byte | checksum uint64 LE | payload length
// uint64 LE | zstd payload.

var containerMagic = [4]byte{'D', 'S', 'C', 'M'}

const containerVersion = 1

// SaveModelCompressed writes a model to a file in the compressed container format.
func SaveModelCompressed(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return SaveModelCompressedToWriter(model, file)
}

// LoadModelCompressed reads a model from a compressed container file.
func LoadModelCompressed(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadModelCompressedFromReader(model, file)
}

// SaveModelCompressedToWriter writes the compressed container to w.
func SaveModelCompressedToWriter(model interface{}, w io.Writer) error {
	var raw bytes.Buffer
	if err := SaveModelToWriter(model, &raw); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	payload := enc.EncodeAll(raw.Bytes(), nil)
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}

	header := make([]byte, 0, 4+1+8+8)
	header = append(header, containerMagic[:]...)
	header = append(header, containerVersion)
	header = binary.LittleEndian.AppendUint64(header, xxhash.Sum64(payload))
	header = binary.LittleEndian.AppendUint64(header, uint64(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write container header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write container payload: %w", err)
	}
	return nil
}

// LoadModelCompressedFromReader reads and verifies a compressed container
// from r and decodes the payload into model.
func LoadModelCompressedFromReader(model interface{}, r io.Reader) error {
	header := make([]byte, 4+1+8+8)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("failed to read container header: %w", err)
	}
	if !bytes.Equal(header[:4], containerMagic[:]) {
		return fmt.Errorf("not a downscale model container (bad magic %q)", header[:4])
	}
	if header[4] != containerVersion {
		return fmt.Errorf("unsupported container version %d", header[4])
	}
	checksum := binary.LittleEndian.Uint64(header[5:13])
	length := binary.LittleEndian.Uint64(header[13:21])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("failed to read container payload: %w", err)
	}
	if got := xxhash.Sum64(payload); got != checksum {
		return fmt.Errorf("container checksum mismatch: expected %x, got %x", checksum, got)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return fmt.Errorf("failed to decompress payload: %w", err)
	}

	return LoadModelFromReader(model, bytes.NewReader(raw))
}
