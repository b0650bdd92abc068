package importer

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/renewpackages/renewapi/pkg/storage"
)

func TestDecodeCSV(t *testing.T) {
	in := "\ufeffB1,B2,B3,B3的詳細資料,extra\n" +
		"129 Zhongshan, phone ,case,  iPhone 15 ,x\n" +
		"49 Xinyi,pc,laptop,,x\n" +
		",pc,laptop,orphan,x\n" +
		"49 Xinyi,pc\n" +
		"\"a,b\",tv,oled,\"quoted \"\"detail\"\"\",x\n"

	got, err := DecodeCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := Result{
		Entries: []storage.Entry{
			{B1: "129 Zhongshan", B2: "phone", B3: "case", Detail: "  iPhone 15 "},
			{B1: "49 Xinyi", B2: "pc", B3: "laptop", Detail: ""},
			{B1: "a,b", B2: "tv", B3: "oled", Detail: `quoted "detail"`},
		},
		Skipped: 2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected result.\nwant: %#v\ngot:  %#v", want, got)
	}
}

func TestDecodeCSVHeaderAliases(t *testing.T) {
	got, err := DecodeCSV(strings.NewReader("detail,b3,b2,b1\nd,z,y,x\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := []storage.Entry{{B1: "x", B2: "y", B3: "z", Detail: "d"}}
	if !reflect.DeepEqual(got.Entries, want) {
		t.Fatalf("got %#v", got.Entries)
	}
}

func TestDecodeCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "B1,B2,detail\na,b,c\n"},
		{"header only", "B1,B2,B3\n"},
		{"all incomplete", "B1,B2,B3\n,,\na,,c\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCSV(strings.NewReader(tt.in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := DecodeCSV(strings.NewReader("B1,B2,B3\n")); !errors.Is(err, ErrNoRows) {
		t.Fatalf("header only: err = %v, want ErrNoRows", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	in := `[
		{"B1": "X", "B2": "Y", "B3": "Z", "detail": "d1"},
		{"B1": 129, "B2": "Y", "B3": "Z", "B3的詳細資料": "d2"},
		{"B1": "X", "B2": "Y", "B3": "Z"},
		{"B1": "X", "B2": "", "B3": "Z"}
	]`
	got, err := DecodeJSON([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	want := Result{
		Entries: []storage.Entry{
			{B1: "X", B2: "Y", B3: "Z", Detail: "d1"},
			{B1: "129", B2: "Y", B3: "Z", Detail: "d2"},
			{B1: "X", B2: "Y", B3: "Z", Detail: ""},
		},
		Skipped: 1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected result.\nwant: %#v\ngot:  %#v", want, got)
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	for _, in := range []string{`{`, `{"B1":"x"}`, `[1,2]`, `[]`} {
		if _, err := DecodeJSON([]byte(in)); err == nil {
			t.Errorf("DecodeJSON(%s) returned no error", in)
		}
	}
}
