package model

import (
	"encoding/base64"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v2"
)

// ParseConfiguration is produced once by the preview and shared read-only by
// every chunk parse of a job.
type ParseConfiguration struct {
	// Header holds the container header bytes up to and including the sync marker
	Header []byte
	// ColumnNames are the flattened field names in column order
	ColumnNames []string
	// ColumnTypes are the target column types in column order
	ColumnTypes []ColumnType
	// Domains holds the ordered category labels of categorical columns and
	// nil for every other column
	Domains [][]string
	// BlockSize is the byte size of the first data block seen by the preview
	BlockSize int64
	// ChunkSize is the recommended chunk size for the chunk store
	ChunkSize int64
	// Codec is the block compression codec named in the header
	Codec string
	// Fingerprint is the xxhash of Header
	Fingerprint uint64
}

// Fingerprint hashes container header bytes.
func Fingerprint(header []byte) uint64 {
	return xxhash.Sum64(header)
}

// NumColumns returns the number of target columns
func (c *ParseConfiguration) NumColumns() int {
	return len(c.ColumnNames)
}

// Domain returns the category labels of column col, or nil.
func (c *ParseConfiguration) Domain(col int) []string {
	if col < 0 || col >= len(c.Domains) {
		return nil
	}
	return c.Domains[col]
}

// Validate checks that the configuration is internally consistent.
func (c *ParseConfiguration) Validate() error {
	if len(c.Header) == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "empty header")
	}
	if len(c.ColumnNames) == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "no columns")
	}
	if len(c.ColumnTypes) != len(c.ColumnNames) {
		return errors.Wrapf(ErrInvalidConfiguration,
			"%d column names but %d column types", len(c.ColumnNames), len(c.ColumnTypes))
	}
	if len(c.Domains) != 0 && len(c.Domains) != len(c.ColumnNames) {
		return errors.Wrapf(ErrInvalidConfiguration,
			"%d column names but %d domains", len(c.ColumnNames), len(c.Domains))
	}
	for i, ct := range c.ColumnTypes {
		if ct != ColumnTypeCategorical && len(c.Domain(i)) > 0 {
			return errors.Wrapf(ErrInvalidConfiguration,
				"column %q is %s but carries a domain", c.ColumnNames[i], ct)
		}
	}
	if c.Fingerprint != 0 && c.Fingerprint != Fingerprint(c.Header) {
		return errors.Wrapf(ErrFingerprintMismatch,
			"recorded %016x, header hashes to %016x", c.Fingerprint, Fingerprint(c.Header))
	}
	if c.BlockSize < 0 || c.ChunkSize < 0 {
		return errors.Wrap(ErrInvalidConfiguration, "negative block or chunk size")
	}
	return nil
}

// persistedConfiguration is the YAML form of ParseConfiguration
type persistedConfiguration struct {
	Header      string       `yaml:"header"`
	ColumnNames []string     `yaml:"column_names"`
	ColumnTypes []ColumnType `yaml:"column_types"`
	Domains     [][]string   `yaml:"domains"`
	BlockSize   int64        `yaml:"recommended_block_size"`
	ChunkSize   int64        `yaml:"chunk_size,omitempty"`
	Codec       string       `yaml:"codec,omitempty"`
	Fingerprint uint64       `yaml:"fingerprint"`
}

// MarshalConfiguration encodes a parse configuration as YAML so it can be
// attached to a job once and reused by every worker.
func MarshalConfiguration(c *ParseConfiguration) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	p := persistedConfiguration{
		Header:      base64.StdEncoding.EncodeToString(c.Header),
		ColumnNames: c.ColumnNames,
		ColumnTypes: c.ColumnTypes,
		Domains:     make([][]string, len(c.ColumnNames)),
		BlockSize:   c.BlockSize,
		ChunkSize:   c.ChunkSize,
		Codec:       c.Codec,
		Fingerprint: c.Fingerprint,
	}
	for i := range p.Domains {
		p.Domains[i] = c.Domain(i)
	}
	if p.Fingerprint == 0 {
		p.Fingerprint = Fingerprint(c.Header)
	}

	out, err := yaml.Marshal(&p)
	if err != nil {
		return nil, errors.Wrap(err, "marshal parse configuration")
	}
	return out, nil
}

// UnmarshalConfiguration decodes and validates a configuration written by
// MarshalConfiguration.
func UnmarshalConfiguration(data []byte) (*ParseConfiguration, error) {
	var p persistedConfiguration
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidConfiguration), "unmarshal parse configuration")
	}

	header, err := base64.StdEncoding.DecodeString(p.Header)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidConfiguration), "decode header")
	}

	c := &ParseConfiguration{
		Header:      header,
		ColumnNames: p.ColumnNames,
		ColumnTypes: p.ColumnTypes,
		Domains:     make([][]string, len(p.ColumnNames)),
		BlockSize:   p.BlockSize,
		ChunkSize:   p.ChunkSize,
		Codec:       p.Codec,
		Fingerprint: p.Fingerprint,
	}
	if len(p.Domains) != 0 && len(p.Domains) != len(p.ColumnNames) {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"%d column names but %d domains", len(p.ColumnNames), len(p.Domains))
	}
	for i, d := range p.Domains {
		if len(d) > 0 {
			c.Domains[i] = d
		}
	}
	if c.Fingerprint == 0 {
		return nil, errors.Wrap(ErrInvalidConfiguration, "missing fingerprint")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
