// Package config loads the segwire tool configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xtaci/smux"

	"github.com/rawbytedev/segwire"
	"github.com/rawbytedev/segwire/pkg/zframe"
)

type Conf struct {
	Log         Log         `yaml:"log"`
	Reader      Reader      `yaml:"reader"`
	Builder     Builder     `yaml:"builder"`
	Compression Compression `yaml:"compression"`
	Transport   Transport   `yaml:"transport"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Reader struct {
	TraversalLimitWords uint64 `yaml:"traversal_limit_words"`
	NestingLimit        int    `yaml:"nesting_limit"`
}

type Builder struct {
	FirstSegmentWords int    `yaml:"first_segment_words"`
	Allocation        string `yaml:"allocation"`
}

type Compression struct {
	Enabled bool `yaml:"enabled"`
	Level   int  `yaml:"level"`
}

type Transport struct {
	KeepAliveSec     int `yaml:"keepalive_sec"`
	KeepAliveTimeout int `yaml:"keepalive_timeout_sec"`
	MaxReceiveBuffer int `yaml:"max_receive_buffer"`
	MaxStreamBuffer  int `yaml:"max_stream_buffer"`
}

// Default returns a configuration with every field defaulted.
func Default() *Conf {
	c := &Conf{}
	c.setDefaults()
	return c
}

// LoadFromFile reads, defaults and validates the file at path.
func LoadFromFile(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes.
func Parse(data []byte) (*Conf, error) {
	var c Conf
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return &c, err
	}
	return &c, nil
}

func (c *Conf) setDefaults() {
	c.Log.setDefaults()
	c.Reader.setDefaults()
	c.Builder.setDefaults()
	c.Transport.setDefaults()
}

func (c *Conf) validate() error {
	var result *multierror.Error
	for _, errs := range [][]error{
		c.Log.validate(),
		c.Reader.validate(),
		c.Builder.validate(),
		c.Compression.validate(),
		c.Transport.validate(),
	} {
		result = multierror.Append(result, errs...)
	}
	return result.ErrorOrNil()
}

func (l *Log) setDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
}

func (l *Log) validate() []error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return []error{fmt.Errorf("log.level: %v", err)}
	}
	return nil
}

func (r *Reader) setDefaults() {
	if r.TraversalLimitWords == 0 {
		r.TraversalLimitWords = segwire.DefaultTraversalLimitInWords
	}
	if r.NestingLimit == 0 {
		r.NestingLimit = segwire.DefaultNestingLimit
	}
}

func (r *Reader) validate() []error {
	var errs []error
	if r.NestingLimit < 0 {
		errs = append(errs, fmt.Errorf("reader.nesting_limit must be >= 0"))
	}
	if r.TraversalLimitWords > 1<<40 {
		logrus.Warnf("reader.traversal_limit_words is very high (%d) - a peer can make us allocate that much", r.TraversalLimitWords)
	}
	return errs
}

func (b *Builder) setDefaults() {
	if b.FirstSegmentWords == 0 {
		b.FirstSegmentWords = segwire.DefaultFirstSegmentWords
	}
	if b.Allocation == "" {
		b.Allocation = "grow"
	}
}

func (b *Builder) validate() []error {
	var errs []error
	if b.FirstSegmentWords < 1 {
		errs = append(errs, fmt.Errorf("builder.first_segment_words must be >= 1"))
	}
	if b.Allocation != "grow" && b.Allocation != "fixed" {
		errs = append(errs, fmt.Errorf("builder.allocation must be 'grow' or 'fixed'"))
	}
	return errs
}

func (c *Compression) validate() []error {
	if c.Level < 0 || c.Level > 22 {
		return []error{fmt.Errorf("compression.level must be between 0 and 22")}
	}
	return nil
}

func (t *Transport) setDefaults() {
	d := smux.DefaultConfig()
	if t.KeepAliveSec == 0 {
		t.KeepAliveSec = int(d.KeepAliveInterval / time.Second)
	}
	if t.KeepAliveTimeout == 0 {
		t.KeepAliveTimeout = int(d.KeepAliveTimeout / time.Second)
	}
	if t.MaxReceiveBuffer == 0 {
		t.MaxReceiveBuffer = d.MaxReceiveBuffer
	}
	if t.MaxStreamBuffer == 0 {
		t.MaxStreamBuffer = d.MaxStreamBuffer
	}
}

func (t *Transport) validate() []error {
	var errs []error
	if t.KeepAliveSec < 1 {
		errs = append(errs, fmt.Errorf("transport.keepalive_sec must be >= 1"))
	}
	if t.KeepAliveTimeout < t.KeepAliveSec {
		errs = append(errs, fmt.Errorf("transport.keepalive_timeout_sec must be >= keepalive_sec"))
	}
	if t.MaxStreamBuffer < 1 || t.MaxStreamBuffer > t.MaxReceiveBuffer {
		errs = append(errs, fmt.Errorf("transport.max_stream_buffer must be between 1 and max_receive_buffer"))
	}
	return errs
}

// ReaderOptions converts the reader section for the decoder.
func (c *Conf) ReaderOptions() segwire.ReaderOptions {
	return segwire.ReaderOptions{
		TraversalLimitInWords: c.Reader.TraversalLimitWords,
		NestingLimit:          c.Reader.NestingLimit,
	}
}

// BuilderOptions converts the builder section.
func (c *Conf) BuilderOptions() segwire.BuilderOptions {
	opts := segwire.BuilderOptions{FirstSegmentWords: c.Builder.FirstSegmentWords}
	if c.Builder.Allocation == "fixed" {
		opts.Allocation = segwire.FixedSize
	}
	return opts
}

// ZframeOptions converts the compression section.
func (c *Conf) ZframeOptions() zframe.Options {
	return zframe.Options{Level: c.Compression.Level}
}

// SmuxConfig converts the transport section.
func (c *Conf) SmuxConfig() *smux.Config {
	cfg := smux.DefaultConfig()
	cfg.KeepAliveInterval = time.Duration(c.Transport.KeepAliveSec) * time.Second
	cfg.KeepAliveTimeout = time.Duration(c.Transport.KeepAliveTimeout) * time.Second
	cfg.MaxReceiveBuffer = c.Transport.MaxReceiveBuffer
	cfg.MaxStreamBuffer = c.Transport.MaxStreamBuffer
	return cfg
}
