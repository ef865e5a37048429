package diag

import (
	"testing"

	"kernelfuzz/internal/source"
)

func TestWireCategories(t *testing.T) {
	cases := map[Code]Category{
		WireVersionMismatch:   CatVersionMismatch,
		WireUnknownRecord:     CatUnknownRecordKind,
		WireAxiomRejected:     CatUnknownRecordKind,
		WireMalformedNumber:   CatMalformedToken,
		WireMissingToken:      CatMalformedToken,
		WireNameOutOfRange:    CatOutOfRangeReference,
		WireAnonymousName:     CatOutOfRangeReference,
		WireUnknownInductive:  CatOutOfRangeReference,
		WireTrailingData:      CatTrailingData,
		KernelUnknownConstant: CatNone,
	}
	for code, want := range cases {
		if got := code.Category(); got != want {
			t.Errorf("%s: category %s, want %s", code.ID(), got, want)
		}
	}
}

func TestCodeIDs(t *testing.T) {
	if got := WireTrailingData.ID(); got != "WIR1016" {
		t.Fatalf("ID() = %q", got)
	}
	if got := KernelFalseAdmitted.ID(); got != "KRN2008" {
		t.Fatalf("ID() = %q", got)
	}
	if got := Code(9999).Title(); got != "Unknown error" {
		t.Fatalf("unknown code title = %q", got)
	}
}

func TestBagLimitAndSort(t *testing.T) {
	bag := NewBag(2)
	r := BagReporter{Bag: bag}
	ReportError(r, WireTrailingData, source.Span{Start: 10, End: 12}, "late").Emit()
	ReportWarning(r, WireInfo, source.Span{Start: 1, End: 2}, "early").Emit()
	ReportError(r, WireMissingToken, source.Span{}, "dropped").Emit()
	if bag.Len() != 2 {
		t.Fatalf("limit not enforced: %d", bag.Len())
	}
	bag.Sort()
	if bag.Items()[0].Message != "early" {
		t.Fatalf("sort by start failed: %+v", bag.Items())
	}
	if !bag.HasErrors() {
		t.Fatalf("HasErrors() = false")
	}
	if n := bag.CountByCode()[WireTrailingData]; n != 1 {
		t.Fatalf("CountByCode = %d", n)
	}
}

func TestBuilderEmitsOnce(t *testing.T) {
	bag := NewBag(10)
	b := ReportError(BagReporter{Bag: bag}, WireUnknownRecord, source.Span{}, "x").
		WithNote(source.Span{Start: 1}, "here")
	b.Emit()
	b.Emit()
	if bag.Len() != 1 || len(bag.Items()[0].Notes) != 1 {
		t.Fatalf("unexpected bag state: %+v", bag.Items())
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	for i := 0; i < 3; i++ {
		r.Report(KernelUnknownConstant, SevError, source.Span{}, "unknown constant Nat", nil)
	}
	r.Report(KernelUnknownConstant, SevError, source.Span{}, "unknown constant Bool", nil)
	if bag.Len() != 2 {
		t.Fatalf("dedup failed, got %d items", bag.Len())
	}
}
