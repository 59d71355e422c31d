package splitter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/metrics"
)

const objectPadding = 7

// memoryLoader serves content from in-memory objects.
type memoryLoader struct {
	objects map[uuid.UUID][]byte
	err     error
}

func newMemoryLoader() *memoryLoader {
	return &memoryLoader{objects: make(map[uuid.UUID][]byte)}
}

// content stores every piece in its own object, behind some padding so that
// segment offsets are not zero, and returns a content over all pieces.
func (m *memoryLoader) content(t *testing.T, name string, pieces ...string) domain.Content {
	t.Helper()
	owner := uuid.New()
	var segments []domain.Segment
	for _, piece := range pieces {
		id := uuid.New()
		m.objects[id] = append(bytes.Repeat([]byte{'~'}, objectPadding), piece...)
		s, err := domain.NewSegment(id, objectPadding, int64(len(piece)), owner)
		require.NoError(t, err)
		segments = append(segments, s)
	}
	return domain.NewContent(name, "text/csv", segments...)
}

func (m *memoryLoader) render(t *testing.T, c domain.Content) string {
	t.Helper()
	var buf bytes.Buffer
	for _, s := range c.Segments {
		data, ok := m.objects[s.ObjectID]
		require.True(t, ok, "unknown object %s", s.ObjectID)
		buf.Write(data[s.Offset:s.End()])
	}
	return buf.String()
}

func (m *memoryLoader) Load(_ context.Context, c domain.Content) (io.ReadCloser, error) {
	if m.err != nil {
		return nil, m.err
	}
	var buf bytes.Buffer
	for _, s := range c.Segments {
		data, ok := m.objects[s.ObjectID]
		if !ok {
			return nil, domain.ErrObjectNotFound
		}
		buf.Write(data[s.Offset:s.End()])
	}
	return io.NopCloser(&buf), nil
}

func mustParams(t *testing.T, opts ...Option) Params {
	t.Helper()
	p, err := NewParams(opts...)
	require.NoError(t, err)
	return p
}

func split(t *testing.T, input string, opts ...Option) ([]string, error) {
	t.Helper()
	loader := newMemoryLoader()
	content := loader.content(t, "input.csv", input)
	return splitContent(t, loader, content, opts...)
}

func splitContent(t *testing.T, loader *memoryLoader, content domain.Content, opts ...Option) ([]string, error) {
	t.Helper()
	s := New(loader, nil, zerolog.Nop())
	children, err := s.SplitContent(context.Background(), content, mustParams(t, opts...))
	if err != nil {
		return nil, err
	}
	got := make([]string, 0, len(children))
	for _, child := range children {
		require.Equal(t, content.MediaType, child.MediaType)
		got = append(got, loader.render(t, child))
	}
	return got, nil
}

func TestSplitter_SizeBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     []Option
		boundary int64
		want     []string
	}{
		{
			name:     "comments and headers",
			input:    "#ABC\nhead\n1234\n5678\n",
			opts:     []Option{WithHeaders(true), WithCommentChars("#")},
			boundary: 15,
			want:     []string{"#ABC\nhead\n1234\n", "head\n5678\n"},
		},
		{
			name:     "headers",
			input:    "head\n1234\n5678\n",
			opts:     []Option{WithHeaders(true)},
			boundary: 10,
			want:     []string{"head\n1234\n", "head\n5678\n"},
		},
		{
			name:     "no headers",
			input:    "1234\n5678\n9101\n",
			boundary: 5,
			want:     []string{"1234\n", "5678\n", "9101\n"},
		},
		{
			name:     "longer middle row",
			input:    "head\n1234\n56789\n1011\n",
			opts:     []Option{WithHeaders(true)},
			boundary: 11,
			want:     []string{"head\n1234\n", "head\n56789\n", "head\n1011\n"},
		},
		{
			name:     "longer last row",
			input:    "head\n1234\n5678\n91011\n",
			opts:     []Option{WithHeaders(true)},
			boundary: 11,
			want:     []string{"head\n1234\n", "head\n5678\n", "head\n91011\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, size := range []int64{tt.boundary, tt.boundary + 1} {
				got, err := split(t, tt.input, append(tt.opts, WithMaxSize(size))...)
				require.NoError(t, err, "max size %d", size)
				require.Equal(t, tt.want, got, "max size %d", size)
			}

			_, err := split(t, tt.input, append(tt.opts, WithMaxSize(tt.boundary-1))...)
			require.Error(t, err)
		})
	}
}

func TestSplitter_MaxSizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    []Option
		wantErr error
	}{
		{
			name:    "comment longer than limit",
			input:   "#comment\nhead\n",
			opts:    []Option{WithHeaders(true), WithCommentChars("#"), WithMaxSize(8)},
			wantErr: domain.ErrLineOverflow,
		},
		{
			name:    "header longer than limit",
			input:   "#abc\nheader\nrow",
			opts:    []Option{WithHeaders(true), WithCommentChars("#"), WithMaxSize(6)},
			wantErr: domain.ErrLineOverflow,
		},
		{
			name:    "comments and header over limit",
			input:   "#abc\nhead\nrow",
			opts:    []Option{WithHeaders(true), WithCommentChars("#"), WithMaxSize(8)},
			wantErr: domain.ErrSegmentOverflow,
		},
		{
			name:    "first row does not fit beside header",
			input:   "#abc\nhead\nrow",
			opts:    []Option{WithHeaders(true), WithCommentChars("#"), WithMaxSize(12)},
			wantErr: domain.ErrSegmentOverflow,
		},
		{
			name:    "row longer than remaining limit",
			input:   "head\nrow",
			opts:    []Option{WithHeaders(true), WithMaxSize(6)},
			wantErr: domain.ErrLineOverflow,
		},
		{
			name:    "large comments",
			input:   "#U,V,W\n#X,Y,Z\nA,B,C\n1,4,7\n2,5,8\n3,6,9",
			opts:    []Option{WithHeaders(true), WithCommentChars("#"), WithMaxSize(25)},
			wantErr: domain.ErrSegmentOverflow,
		},
		{
			name:    "first row too big",
			input:   "head\ntoo big\nrow",
			opts:    []Option{WithHeaders(true), WithMaxSize(6)},
			wantErr: domain.ErrLineOverflow,
		},
		{
			name:    "middle row too big",
			input:   "head\none\ntoo big\ntwo",
			opts:    []Option{WithHeaders(true), WithMaxSize(6)},
			wantErr: domain.ErrLineOverflow,
		},
		{
			name:    "last row too big",
			input:   "head\none\ntwo\ntoo big",
			opts:    []Option{WithHeaders(true), WithMaxSize(6)},
			wantErr: domain.ErrLineOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := split(t, tt.input, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, got)
		})
	}
}

func TestSplitter_FindsHeader(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		comments string
		want     []string
	}{
		{
			name:     "newline",
			input:    "//c1\n//c2\nhead\nrow1\nrow2\n",
			comments: "//",
			want:     []string{"//c1\n//c2\nhead\nrow1\n", "head\nrow2\n"},
		},
		{
			name:     "carriage return",
			input:    "##c1\r##c2\rhead\rrow1\rrow2\r",
			comments: "##",
			want:     []string{"##c1\r##c2\rhead\rrow1\r", "head\rrow2\r"},
		},
		{
			name:     "crlf",
			input:    "//c1\r\nhead\r\nrow1\r\nrow2",
			comments: "//",
			want:     []string{"//c1\r\nhead\r\nrow1\r\n", "head\r\nrow2"},
		},
		{
			name:     "comment prefix inside header is ignored",
			input:    "head//x\nrow1\nrow2\n",
			comments: "//",
			want:     []string{"head//x\nrow1\n", "head//x\nrow2\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := split(t, tt.input, WithHeaders(true), WithCommentChars(tt.comments), WithMaxRows(1))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_HeaderNotFound(t *testing.T) {
	_, err := split(t, "#one\n#two\n", WithHeaders(true), WithCommentChars("#"))
	require.ErrorIs(t, err, domain.ErrHeaderNotFound)
	require.Contains(t, err.Error(), "Unable to find the header line")

	_, err = split(t, "", WithHeaders(true))
	require.ErrorIs(t, err, domain.ErrHeaderNotFound)
}

func TestSplitter_BlankCommentCharsDisableComments(t *testing.T) {
	got, err := split(t, " head\n row1\n row2\n", WithHeaders(true), WithCommentChars(" "), WithMaxRows(1))
	require.NoError(t, err)
	require.Equal(t, []string{" head\n row1\n", " head\n row2\n"}, got)
}

func TestSplitter_EmptyWithoutHeaders(t *testing.T) {
	got, err := split(t, "")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSplitter_MaxRowsAndMaxSize(t *testing.T) {
	got, err := split(t, "1\n2\n3\n4\n567890\na", WithMaxSize(8), WithMaxRows(3))
	require.NoError(t, err)
	require.Equal(t, []string{"1\n2\n3\n", "4\n", "567890\na"}, got)
}

func TestSplitter_GoodCSV(t *testing.T) {
	const input = "A,B,C\n1,4,7\n2,5,8\n3,6,9\n"

	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{
			name: "no headers by size",
			opts: []Option{WithMaxSize(12)},
			want: []string{"A,B,C\n1,4,7\n", "2,5,8\n3,6,9\n"},
		},
		{
			name: "no headers by rows",
			opts: []Option{WithMaxRows(2)},
			want: []string{"A,B,C\n1,4,7\n", "2,5,8\n3,6,9\n"},
		},
		{
			name: "headers by size",
			opts: []Option{WithHeaders(true), WithMaxSize(18)},
			want: []string{"A,B,C\n1,4,7\n2,5,8\n", "A,B,C\n3,6,9\n"},
		},
		{
			name: "headers by rows",
			opts: []Option{WithHeaders(true), WithMaxRows(2)},
			want: []string{"A,B,C\n1,4,7\n2,5,8\n", "A,B,C\n3,6,9\n"},
		},
		{
			name: "everything fits",
			opts: []Option{WithHeaders(true)},
			want: []string{input},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := split(t, input, tt.opts...)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_LargeComments(t *testing.T) {
	got, err := split(t, "#12345\n#67890\nheader\nA,B,C\nD,E,F\nG,H,I\nJ,K,L,M,N,O,P,Q\nR,S\n",
		WithHeaders(true), WithCommentChars("#"), WithMaxSize(34))
	require.NoError(t, err)
	require.Equal(t, []string{
		"#12345\n#67890\nheader\nA,B,C\nD,E,F\n",
		"header\nG,H,I\nJ,K,L,M,N,O,P,Q\nR,S\n",
	}, got)
}

func TestSplitter_GoodCSVWithComments(t *testing.T) {
	const input = "#U,V,W\n#X,Y,Z\nA,B,C\n1,4,7\n2,5,8\n3,6,9\n"
	want := []string{"#U,V,W\n#X,Y,Z\nA,B,C\n1,4,7\n2,5,8\n", "A,B,C\n3,6,9\n"}

	got, err := split(t, input, WithHeaders(true), WithCommentChars("#"), WithMaxSize(32))
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = split(t, input, WithHeaders(true), WithCommentChars("#"), WithMaxRows(2))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSplitter_CommentsNotSpecialWithoutHeaders(t *testing.T) {
	got, err := split(t, "#a\n#b\nc\n", WithCommentChars("#"), WithMaxRows(2))
	require.NoError(t, err)
	require.Equal(t, []string{"#a\n#b\n", "c\n"}, got)
}

func TestSplitter_HeaderOnly(t *testing.T) {
	got, err := split(t, "#c\nhead\n", WithHeaders(true), WithCommentChars("#"))
	require.NoError(t, err)
	require.Equal(t, []string{"#c\nhead\n"}, got)
}

func TestSplitter_ReferencesAcrossObjects(t *testing.T) {
	loader := newMemoryLoader()
	content := loader.content(t, "multi.csv", "he", "ad\n1", "23\n45", "6\n789\n")

	got, err := splitContent(t, loader, content, WithHeaders(true), WithMaxRows(1))
	require.NoError(t, err)
	require.Equal(t, []string{"head\n123\n", "head\n456\n", "head\n789\n"}, got)
}

func TestSplitter_ChildrenShareSourceObjects(t *testing.T) {
	loader := newMemoryLoader()
	content := loader.content(t, "data.csv", "h\n1\n2\n")

	children, err := SplitReader(content, bytes.NewBufferString("h\n1\n2\n"), mustParams(t, WithHeaders(true), WithMaxRows(1)))
	require.NoError(t, err)
	require.Len(t, children, 2)

	require.Equal(t, "data.0.csv", children[0].Name)
	require.Equal(t, "data.1.csv", children[1].Name)

	source := content.Segments[0]
	for _, child := range children {
		for _, s := range child.Segments {
			require.Equal(t, source.ObjectID, s.ObjectID)
			require.GreaterOrEqual(t, s.Offset, source.Offset)
			require.LessOrEqual(t, s.End(), source.End())
		}
	}

	// second child: header reference followed by its row
	require.Equal(t, []domain.Segment{
		source.WithRange(objectPadding, 2),
		source.WithRange(objectPadding+4, 2),
	}, children[1].Segments)
}

func TestSplitter_Deterministic(t *testing.T) {
	loader := newMemoryLoader()
	content := loader.content(t, "data.csv", "h\n1\n2\n3\n")
	params := mustParams(t, WithHeaders(true), WithMaxSize(5))
	s := New(loader, nil, zerolog.Nop())

	first, err := s.SplitContent(context.Background(), content, params)
	require.NoError(t, err)
	second, err := s.SplitContent(context.Background(), content, params)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int64(5), params.MaxSize())
}

func TestSplitter_LoadError(t *testing.T) {
	loader := newMemoryLoader()
	content := loader.content(t, "data.csv", "x\n")
	loader.err = domain.ErrObjectNotFound

	m := metrics.New()
	s := New(loader, m, zerolog.Nop())

	_, err := s.SplitContent(context.Background(), content, mustParams(t))
	require.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestSplitReader_PropagatesReadErrors(t *testing.T) {
	content := domain.NewContent("x", "text/plain")
	_, err := SplitReader(content, failingReader{}, mustParams(t))
	require.Error(t, err)
	require.False(t, errors.Is(err, io.EOF))
}

func TestChildName(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{name: "data.csv", index: 0, want: "data.0.csv"},
		{name: "data.csv", index: 12, want: "data.12.csv"},
		{name: "archive.tar.gz", index: 1, want: "archive.tar.1.gz"},
		{name: "data", index: 2, want: "data.2"},
		{name: "", index: 0, want: "0"},
		{name: "", index: 1, want: "1"},
		{name: ".env", index: 3, want: ".env.3"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, ChildName(tt.name, tt.index))
		})
	}
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, "line_overflow", ErrorKind(domain.NewDomainError(domain.ErrLineOverflow, "x", "")))
	require.Equal(t, "segment_overflow", ErrorKind(domain.ErrSegmentOverflow))
	require.Equal(t, "header_not_found", ErrorKind(domain.ErrHeaderNotFound))
	require.Equal(t, "io", ErrorKind(errors.New("boom")))
}
