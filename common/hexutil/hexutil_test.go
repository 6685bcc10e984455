// Copyright 2026 The golem-unlimited Authors
// This file is part of the golem-unlimited library.
//
// The golem-unlimited library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The golem-unlimited library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the golem-unlimited library. If not, see <http://www.gnu.org/licenses/>.

package hexutil

import (
	"bytes"
	"testing"
)

type marshalTest struct {
	input any
	want  string
}

type unmarshalTest struct {
	input   string
	want    []byte
	wantErr error
}

var (
	encodeBytesTests = []marshalTest{
		{[]byte{}, "0x"},
		{[]byte{0}, "0x00"},
		{[]byte{0, 0, 1, 2}, "0x00000102"},
	}

	decodeBytesTests = []unmarshalTest{
		{input: ``, wantErr: ErrEmptyString},
		{input: `0`, wantErr: ErrMissingPrefix},
		{input: `0x0`, wantErr: ErrOddLength},
		{input: `0x023`, wantErr: ErrOddLength},
		{input: `0xxx`, wantErr: ErrSyntax},
		{input: `0x01zz01`, wantErr: ErrSyntax},
		{input: `0x`, want: []byte{}},
		{input: `0X`, want: []byte{}},
		{input: `0x02`, want: []byte{0x02}},
		{input: `0X02`, want: []byte{0x02}},
		{input: `0xffffffffff`, want: []byte{0xff, 0xff, 0xff, 0xff, 0xff}},
	}
)

func TestEncode(t *testing.T) {
	for _, test := range encodeBytesTests {
		enc := Encode(test.input.([]byte))
		if enc != test.want {
			t.Errorf("input %x: wrong encoding %s", test.input, enc)
		}
	}
}

func TestDecode(t *testing.T) {
	for _, test := range decodeBytesTests {
		dec, err := Decode(test.input)
		if err != test.wantErr {
			t.Errorf("input %s: error mismatch: got %v, want %v", test.input, err, test.wantErr)
			continue
		}
		if test.wantErr == nil && !bytes.Equal(test.want, dec) {
			t.Errorf("input %s: value mismatch: got %x, want %x", test.input, dec, test.want)
		}
	}
}

func TestDecodeFixed(t *testing.T) {
	var out [4]byte
	if err := DecodeFixed("test", "0x0102030a", out[:]); err != nil {
		t.Fatal(err)
	}
	if out != [4]byte{1, 2, 3, 10} {
		t.Fatalf("wrong value %x", out)
	}
	for _, input := range []string{"", "0102030a", "0x01020304ff", "0x010203", "0x0102030g"} {
		var out [4]byte
		if err := DecodeFixed("test", input, out[:]); err == nil {
			t.Errorf("input %q: expected error", input)
		}
		if out != [4]byte{} {
			t.Errorf("input %q: output modified on error: %x", input, out)
		}
	}
}
