package arb

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type memState struct {
	books map[string]*Book
}

func (m *memState) GetBook(verseID string) (*Book, error) {
	return m.books[verseID], nil
}

func (m *memState) PutBook(verseID string, book *Book) error {
	m.books[verseID] = book
	return nil
}

var trader = common.HexToAddress("0x00000000000000000000000000000000000000e1")

func TestApplyCapturesSpread(t *testing.T) {
	state := &memState{books: make(map[string]*Book)}
	desk := NewDesk(DefaultParams())
	desk.SetState(state)

	out, err := desk.Apply("verse-1", trader, big.NewInt(1_980_000))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out.Cmp(big.NewInt(2_079_000)) != 0 {
		t.Fatalf("expected 2079000, got %s", out)
	}
	if book := state.books["verse-1"]; book.Captured.Cmp(big.NewInt(99_000)) != 0 {
		t.Fatalf("expected captured 99000, got %s", book.Captured)
	}
}

func TestReverseIsPassThrough(t *testing.T) {
	desk := NewDesk(DefaultParams())
	desk.SetState(&memState{books: make(map[string]*Book)})

	input := big.NewInt(1_980_000)
	restored, err := desk.Reverse("verse-1", trader, input)
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if restored.Cmp(input) != 0 {
		t.Fatalf("expected pass-through of %s, got %s", input, restored)
	}
}

func TestApplyRejectsNonPositive(t *testing.T) {
	desk := NewDesk(DefaultParams())
	desk.SetState(&memState{books: make(map[string]*Book)})
	if _, err := desk.Apply("verse-1", trader, nil); err == nil {
		t.Fatalf("expected rejection of nil amount")
	}
	if _, err := desk.Apply("verse-1", trader, big.NewInt(0)); err == nil {
		t.Fatalf("expected rejection of zero amount")
	}
}
