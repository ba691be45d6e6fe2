package frame

import (
	"encoding/json"
	"fmt"

	"github.com/charonvid/charon/pkg/codecerr"
)

// MetaMagic and FECInfoMagic prefix the two records carried in the
// metadata frame.
const (
	MetaMagic    = "META2"
	FECInfoMagic = "FEC_INFO"
)

// FECInfo is the JSON body of the FEC_INFO record.
type FECInfo struct {
	OriginalChunks int     `json:"original_chunks"`
	TotalChunks    int     `json:"total_chunks"`
	FECRatio       float64 `json:"fec_ratio"`
	ChunkSize      int     `json:"chunk_size"`
}

// BuildMetaRecord wraps the recipient's PEM-encoded public key as a META2
// record.
func BuildMetaRecord(pubkeyPEM []byte) []byte {
	out := make([]byte, 0, len(MetaMagic)+len(pubkeyPEM))
	out = append(out, MetaMagic...)
	out = append(out, pubkeyPEM...)
	return out
}

// ParseMetaRecord strips the META2 magic and returns the PEM bytes.
func ParseMetaRecord(record []byte) ([]byte, error) {
	if len(record) < len(MetaMagic) || string(record[:len(MetaMagic)]) != MetaMagic {
		return nil, codecerr.Wrap("frame", "parse-meta", fmt.Errorf("%w: bad META2 magic", codecerr.ErrFormat))
	}
	return record[len(MetaMagic):], nil
}

// BuildFECInfoRecord serializes info as a FEC_INFO record.
func BuildFECInfoRecord(info FECInfo) ([]byte, error) {
	body, err := json.Marshal(info)
	if err != nil {
		return nil, codecerr.Wrap("frame", "build-fec-info", err)
	}
	out := make([]byte, 0, len(FECInfoMagic)+len(body))
	out = append(out, FECInfoMagic...)
	out = append(out, body...)
	return out, nil
}

// ParseFECInfoRecord strips the FEC_INFO magic and decodes the JSON body.
func ParseFECInfoRecord(record []byte) (FECInfo, error) {
	if len(record) < len(FECInfoMagic) || string(record[:len(FECInfoMagic)]) != FECInfoMagic {
		return FECInfo{}, codecerr.Wrap("frame", "parse-fec-info", fmt.Errorf("%w: bad FEC_INFO magic", codecerr.ErrFormat))
	}
	var info FECInfo
	if err := json.Unmarshal(record[len(FECInfoMagic):], &info); err != nil {
		return FECInfo{}, codecerr.Wrap("frame", "parse-fec-info", fmt.Errorf("%w: %w", codecerr.ErrFormat, err))
	}
	return info, nil
}
