package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Строгий текстовый декодер
	WireInfo               Code = 1000
	WireVersionMismatch    Code = 1001
	WireUnknownRecord      Code = 1002
	WireUnknownNodeKind    Code = 1003
	WireAxiomRejected      Code = 1004
	WireMalformedNumber    Code = 1005
	WireMalformedHex       Code = 1006
	WireMalformedBool      Code = 1007
	WireMissingToken       Code = 1008
	WireUnknownHint        Code = 1009
	WireNameOutOfRange     Code = 1010
	WireLevelOutOfRange    Code = 1011
	WireTermOutOfRange     Code = 1012
	WireAnonymousName      Code = 1013
	WireUnknownConstructor Code = 1014
	WireUnknownInductive   Code = 1015
	WireTrailingData       Code = 1016

	// Допуск деклараций ядром
	KernelInfo              Code = 2000
	KernelAlreadyDeclared   Code = 2001
	KernelUnknownConstant   Code = 2002
	KernelLooseBoundVar     Code = 2003
	KernelUndeclaredUniv    Code = 2004
	KernelDuplicateUnivParm Code = 2005
	KernelMalformedDecl     Code = 2006
	KernelPanic             Code = 2007
	KernelFalseAdmitted     Code = 2008

	IOReadFailed    Code = 4001
	IOWriteFailed   Code = 4002
	IOCorruptCorpus Code = 4003
	ConfigInvalid   Code = 5001
	ConfigNotFound  Code = 5002
)

// Category groups wire codes into the coarse strict-decode taxonomy.
type Category uint8

const (
	CatNone Category = iota
	CatMalformedToken
	CatOutOfRangeReference
	CatUnknownRecordKind
	CatTrailingData
	CatVersionMismatch
)

func (c Category) String() string {
	switch c {
	case CatMalformedToken:
		return "MalformedToken"
	case CatOutOfRangeReference:
		return "OutOfRangeReference"
	case CatUnknownRecordKind:
		return "UnknownRecordKind"
	case CatTrailingData:
		return "TrailingData"
	case CatVersionMismatch:
		return "VersionMismatch"
	default:
		return "None"
	}
}

var codeDescription = map[Code]string{
	UnknownCode:             "Unknown error",
	WireInfo:                "Wire information",
	WireVersionMismatch:     "Format header does not match",
	WireUnknownRecord:       "Unknown record keyword",
	WireUnknownNodeKind:     "Unknown node kind",
	WireAxiomRejected:       "Axioms are only accepted in prelude mode",
	WireMalformedNumber:     "Malformed number",
	WireMalformedHex:        "Malformed hex byte",
	WireMalformedBool:       "Malformed boolean",
	WireMissingToken:        "Record ended early",
	WireUnknownHint:         "Unknown reducibility hint",
	WireNameOutOfRange:      "Name index out of range",
	WireLevelOutOfRange:     "Level index out of range",
	WireTermOutOfRange:      "Term index out of range",
	WireAnonymousName:       "Anonymous name not allowed here",
	WireUnknownConstructor:  "Unknown constructor",
	WireUnknownInductive:    "Unknown inductive type",
	WireTrailingData:        "Unconsumed tokens at end of record",
	KernelInfo:              "Kernel information",
	KernelAlreadyDeclared:   "Constant already declared",
	KernelUnknownConstant:   "Unknown constant",
	KernelLooseBoundVar:     "Loose bound variable",
	KernelUndeclaredUniv:    "Undeclared universe parameter",
	KernelDuplicateUnivParm: "Duplicate universe parameter",
	KernelMalformedDecl:     "Malformed declaration",
	KernelPanic:             "Kernel panicked",
	KernelFalseAdmitted:     "Kernel admitted a proof of False",
	IOReadFailed:            "Read failed",
	IOWriteFailed:           "Write failed",
	IOCorruptCorpus:         "Corrupt corpus entry",
	ConfigInvalid:           "Invalid configuration",
	ConfigNotFound:          "Configuration file not found",
}

// Category returns the strict-decode category of a wire code.
func (c Code) Category() Category {
	switch c {
	case WireVersionMismatch:
		return CatVersionMismatch
	case WireUnknownRecord, WireUnknownNodeKind, WireAxiomRejected:
		return CatUnknownRecordKind
	case WireMalformedNumber, WireMalformedHex, WireMalformedBool, WireMissingToken, WireUnknownHint:
		return CatMalformedToken
	case WireNameOutOfRange, WireLevelOutOfRange, WireTermOutOfRange, WireAnonymousName,
		WireUnknownConstructor, WireUnknownInductive:
		return CatOutOfRangeReference
	case WireTrailingData:
		return CatTrailingData
	}
	return CatNone
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("WIR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("KRN%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("CFG%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
