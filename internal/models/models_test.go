package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteCountBeyondUint64(t *testing.T) {
	const huge = "340282366920938463463374607431768211456" // 2^128

	var rec FileRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"name":"big.img","size":`+huge+`}`), &rec))
	assert.Equal(t, huge, rec.Size.String())

	_, fits := rec.Size.Uint64()
	assert.False(t, fits)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"name":"big.img","size":`+huge+`}`, string(out))
}

func TestByteCountPast53Bits(t *testing.T) {
	// 2^53 + 1 is the first integer a float64 cannot hold.
	c, err := ParseByteCount("9007199254740993")
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", c.String())
	assert.Equal(t, "9007199254740993", c.Big().String())
}

func TestParseByteCount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0", "0", false},
		{"204800", "204800", false},
		{"000123", "123", false},
		{"", "", true},
		{"-1", "", true},
		{"+5", "", true},
		{"1.5", "", true},
		{"1e6", "", true},
		{"ten", "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			c, err := ParseByteCount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestByteCountUnmarshalQuoted(t *testing.T) {
	var c ByteCount
	require.NoError(t, json.Unmarshal([]byte(`"18446744073709551616"`), &c))
	assert.Equal(t, "18446744073709551616", c.String())

	assert.ErrorIs(t, json.Unmarshal([]byte(`null`), &c), ErrInvalidSize)
	assert.ErrorIs(t, json.Unmarshal([]byte(`-4`), &c), ErrInvalidSize)
}

func TestByteCountCmpAndEquality(t *testing.T) {
	a := NewByteCount(10)
	b, _ := ParseByteCount("010")
	assert.True(t, a == b)
	assert.Equal(t, 0, a.Cmp(b))
	assert.Equal(t, -1, NewByteCount(9).Cmp(a))
	assert.Equal(t, 1, NewByteCount(100).Cmp(a))
	assert.True(t, NewByteCount(0).IsZero())
	assert.Equal(t, "0", ByteCount{}.String())
}

func TestByteCountBigIsACopy(t *testing.T) {
	c := NewByteCount(42)
	b := c.Big()
	b.SetInt64(7)
	assert.Equal(t, "42", c.String())
}

func TestByteCountHuman(t *testing.T) {
	assert.Equal(t, "205 kB", NewByteCount(204800).Human())
}

func TestFileRecordHelpers(t *testing.T) {
	rec := FileRecord{ID: 7, Name: "Q3 Report.PDF", Size: NewByteCount(204800)}
	assert.Equal(t, "pdf", rec.Extension())
	assert.Equal(t, "https://files.example/files/7/Q3%20Report.PDF", rec.ShareURL("https://files.example/"))
	assert.NoError(t, rec.Validate())

	assert.Equal(t, "", FileRecord{Name: ".bashrc"}.Extension())
	assert.Equal(t, "", FileRecord{Name: "README"}.Extension())
	assert.ErrorIs(t, FileRecord{ID: 1, Name: "  "}.Validate(), ErrInvalidName)
}

func TestParseFileID(t *testing.T) {
	id, err := ParseFileID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, FileID(42), id)

	_, err = ParseFileID("abc")
	assert.Error(t, err)
}

func TestRemoteRejectedError(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := fmt.Errorf("upload: %w", Reject("addFile", cause))

	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindRemoteRejected, ErrorKind(err))
	assert.Equal(t, "quota exceeded", Summary(err))

	// Rejecting an already rejected error keeps the original.
	again := Reject("other", Reject("addFile", cause))
	var rr *RemoteRejectedError
	require.ErrorAs(t, again, &rr)
	assert.Equal(t, "addFile", rr.Op)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrBindingUnavailable, KindBindingUnavailable},
		{fmt.Errorf("retrieve 42: %w", ErrNotFound), KindNotFound},
		{ErrUnsupportedOperation, KindUnsupportedOperation},
		{ErrInvalidSize, KindInvalidInput},
		{ErrUploadInFlight, KindBusy},
		{errors.New("boom"), KindInternal},
		{context.Canceled, KindCanceled},
		{fmt.Errorf("retrieve 42: %w", context.DeadlineExceeded), KindCanceled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}
