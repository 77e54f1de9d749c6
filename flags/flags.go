// Package flags implements the sticky status flags reported through the
// STATUS register.
package flags

import (
	"strings"
	"sync/atomic"

	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/naming"
)

// A Flag is a set of STATUS bits. Bit positions match the STATUS register.
type Flag uint32

// STATUS bits.
const (
	// RxReady is live: it reflects RX_COUNT > 0 and is never latched.
	RxReady Flag = 1 << iota
	PktOK
	CRCErr
	RxOverflow
	BadCmd
	TxOverflow
)

// Sticky is the mask of every bit a Bank can latch.
const Sticky = PktOK | CRCErr | RxOverflow | BadCmd | TxOverflow

var flagNames = []struct {
	flag Flag
	name string
}{
	{RxReady, "RX_READY"},
	{PktOK, "PKT_OK"},
	{CRCErr, "CRC_ERR"},
	{RxOverflow, "RX_OVF"},
	{BadCmd, "BAD_CMD"},
	{TxOverflow, "TX_OVF"},
}

// String lists the names of the set bits, joined by '|'.
func (f Flag) String() string {
	if f == 0 {
		return "0"
	}

	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}

	return strings.Join(names, "|")
}

// HookPosRaise marks when a flag goes from clear to set. The item is the
// newly set Flag.
var HookPosRaise = &hooking.HookPos{Name: "Flag Raise"}

// HookPosClear marks when the bank is cleared. The item is the Flag set that
// was cleared.
var HookPosClear = &hooking.HookPos{Name: "Flag Clear"}

// A Bank holds sticky flags. Flags are OR-latched: raising an already set
// flag has no further effect, and only Clear resets them. Reads never
// mutate the bank.
//
// Raise and Clear are atomic, so both domains may use a Bank at the same
// time without losing a flag.
type Bank struct {
	*hooking.HookableBase

	name string
	bits atomic.Uint32
}

// NewBank creates an empty Bank.
func NewBank(name string) *Bank {
	naming.NameMustBeValid(name)

	return &Bank{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
	}
}

// Name returns the name of the bank.
func (b *Bank) Name() string {
	return b.name
}

// Raise sets the given flags. It returns true if at least one of them was
// not set before. RxReady is live and cannot be raised.
func (b *Bank) Raise(f Flag) bool {
	f &= Sticky
	if f == 0 {
		return false
	}

	old := Flag(b.bits.Or(uint32(f)))
	newlySet := f &^ old

	if newlySet != 0 && b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosRaise,
			Item:   newlySet,
		})
	}

	return newlySet != 0
}

// Clear resets every sticky flag and returns the flags that were set.
func (b *Bank) Clear() Flag {
	old := Flag(b.bits.Swap(0))

	if b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosClear,
			Item:   old,
		})
	}

	return old
}

// Snapshot returns the currently set flags.
func (b *Bank) Snapshot() Flag {
	return Flag(b.bits.Load())
}

// IsSet returns true if every flag in f is set.
func (b *Bank) IsSet(f Flag) bool {
	return b.Snapshot()&f == f
}
