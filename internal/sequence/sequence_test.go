package sequence

import "testing"

func TestFormat(t *testing.T) {
	cases := []struct {
		docType DocType
		seq     int64
		want    string
	}{
		{DocPurchase, 1, "TRXPU-000001"},
		{DocSale, 42, "TRXSA-000042"},
		{DocTransfer, 999999, "TSFR-999999"},
		{DocIncrease, 7, "ADJ-INC-000007"},
		{DocDecrease, 1000000, "ADJ-DEC-1000000"},
	}
	for _, tc := range cases {
		if got := Format(tc.docType, tc.seq); got != tc.want {
			t.Errorf("Format(%s, %d) = %q, want %q", tc.docType, tc.seq, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	if !DocTransfer.Valid() {
		t.Error("transfer should be a valid document type")
	}
	if DocType("invoice").Valid() {
		t.Error("invoice should not be a valid document type")
	}
}
