package splitter

import (
	"fmt"
	"math"
	"strings"

	"github.com/prn-tf/contentstore/internal/config"
	"github.com/prn-tf/contentstore/internal/domain"
)

// DefaultMaxSize is the per-child byte limit used when none is given.
const DefaultMaxSize int64 = math.MaxInt32

// Params controls how content is split. Params are immutable once built.
type Params struct {
	includeHeaders bool
	commentChars   string
	maxRows        int64
	maxSize        int64
}

// Option configures Params.
type Option func(*Params)

// WithHeaders repeats the first non-comment line at the start of every child.
func WithHeaders(include bool) Option {
	return func(p *Params) {
		p.includeHeaders = include
	}
}

// WithCommentChars marks lines starting with prefix as comments during header discovery.
func WithCommentChars(prefix string) Option {
	return func(p *Params) {
		p.commentChars = prefix
	}
}

// WithMaxRows limits the number of data rows per child.
func WithMaxRows(rows int64) Option {
	return func(p *Params) {
		p.maxRows = rows
	}
}

// WithMaxSize limits the number of bytes per child, header included.
func WithMaxSize(size int64) Option {
	return func(p *Params) {
		p.maxSize = size
	}
}

// NewParams builds Params from options. Unset limits default to unlimited
// rows and DefaultMaxSize bytes.
func NewParams(opts ...Option) (Params, error) {
	p := Params{
		maxRows: math.MaxInt64,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if p.maxRows <= 0 {
		return Params{}, domain.NewDomainError(domain.ErrInvalidSplitterParams,
			fmt.Sprintf("max rows must be positive, got %d", p.maxRows), "")
	}
	if p.maxSize <= 0 {
		return Params{}, domain.NewDomainError(domain.ErrInvalidSplitterParams,
			fmt.Sprintf("max size must be positive, got %d", p.maxSize), "")
	}

	return p, nil
}

// ParamsFromConfig builds Params from the splitter section of the config.
// Zero limits keep their defaults.
func ParamsFromConfig(cfg config.SplitterConfig) (Params, error) {
	opts := []Option{
		WithHeaders(cfg.IncludeHeaders),
		WithCommentChars(cfg.CommentChars),
	}
	if cfg.MaxRows > 0 {
		opts = append(opts, WithMaxRows(cfg.MaxRows))
	}
	if cfg.MaxSize > 0 {
		opts = append(opts, WithMaxSize(cfg.MaxSize))
	}
	return NewParams(opts...)
}

// IncludeHeaders returns true if every child starts with the header line.
func (p Params) IncludeHeaders() bool { return p.includeHeaders }

// CommentChars returns the comment prefix, empty if comments are not special.
func (p Params) CommentChars() string { return p.commentChars }

// HasCommentChars returns true if a non-blank comment prefix is set.
func (p Params) HasCommentChars() bool { return strings.TrimSpace(p.commentChars) != "" }

// MaxRows returns the maximum number of data rows per child.
func (p Params) MaxRows() int64 { return p.maxRows }

// MaxSize returns the maximum number of bytes per child.
func (p Params) MaxSize() int64 { return p.maxSize }

// String implements fmt.Stringer.
func (p Params) String() string {
	return fmt.Sprintf("headers=%t comments=%q maxRows=%d maxSize=%d",
		p.includeHeaders, p.commentChars, p.maxRows, p.maxSize)
}
